package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"img-chaos/internal/metrics"
	"img-chaos/internal/nist"
)

// renderTable writes a plain-text table with columns padded to their display
// width, so non-ASCII labels still line up.
func renderTable(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], runewidth.StringWidth(cell))
			}
		}
	}
	line := func(cells []string) {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = runewidth.FillRight(cell, widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}
	line(header)
	sep := make([]string, len(widths))
	for i, n := range widths {
		sep[i] = strings.Repeat("-", n)
	}
	line(sep)
	for _, row := range rows {
		line(row)
	}
}

func renderSecurityTable(w io.Writer, rep metrics.Report) {
	f := func(v float64) string { return fmt.Sprintf("%.4f", v) }
	renderTable(w, []string{"Metric", "Plain", "Cipher"}, [][]string{
		{"Entropy", f(rep.Plain.Entropy), f(rep.Cipher.Entropy)},
		{"Chi²", fmt.Sprintf("%.1f", rep.Plain.ChiSquare), fmt.Sprintf("%.1f", rep.Cipher.ChiSquare)},
		{"Corr. horizontal", f(rep.Plain.Correlation.Horizontal), f(rep.Cipher.Correlation.Horizontal)},
		{"Corr. vertical", f(rep.Plain.Correlation.Vertical), f(rep.Cipher.Correlation.Vertical)},
		{"Corr. diagonal", f(rep.Plain.Correlation.Diagonal), f(rep.Cipher.Correlation.Diagonal)},
	})
	fmt.Fprintf(w, "\nNPCR %.4f%%   UACI %.4f%%\n", rep.NPCR, rep.UACI)
}

func renderRandomnessTable(w io.Writer, rows []nist.TestRow) {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		keys := make([]string, 0, len(r.Values))
		for k := range r.Values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		vals := make([]string, 0, len(keys))
		for _, k := range keys {
			vals = append(vals, fmt.Sprintf("%s=%.6f", k, r.Values[k]))
		}
		out = append(out, []string{r.Name, r.Status, strings.Join(vals, " ")})
	}
	renderTable(w, []string{"Test", "Status", "Values"}, out)
}
