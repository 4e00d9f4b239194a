package nist

import (
	"encoding/json"
	"math"
)

/* ===========================
   p-value helpers
   =========================== */

func normalCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// igamc is the complemented incomplete gamma function Q(a,x).
func igamc(a, x float64) float64 {
	if x < 0 || a <= 0 {
		return math.NaN()
	}
	const eps = 1e-14
	const fpmin = 1e-300
	gln, _ := math.Lgamma(a)
	// series for the lower function, Q = 1 - P
	if x < a+1 {
		ap := a
		sum := 1.0 / a
		del := sum
		for n := 1; n < 1000; n++ {
			ap++
			del *= x / ap
			sum += del
			if math.Abs(del) < math.Abs(sum)*eps {
				break
			}
		}
		return 1.0 - sum*math.Exp(-x+a*math.Log(x)-gln)
	}
	// continued fraction for the upper function
	b := x + 1 - a
	c := 1.0 / fpmin
	d := 1.0 / b
	h := d
	for i := 1; i < 1000; i++ {
		an := -float64(i) * (float64(i) - a)
		b += 2.0
		d = an*d + b
		if math.Abs(d) < fpmin {
			d = fpmin
		}
		c = b + an/c
		if math.Abs(c) < fpmin {
			c = fpmin
		}
		d = 1.0 / d
		del := d * c
		h *= del
		if math.Abs(del-1.0) < eps {
			break
		}
	}
	return math.Exp(-x+a*math.Log(x)-gln) * h
}

func sumBits(xs []int) int {
	s := 0
	for _, v := range xs {
		s += v
	}
	return s
}

// SerialMinBits is the shortest stream the serial test accepts. Cipher
// images of side 128 and up clear it.
const SerialMinBits = 1000

/* ===========================
   tests
   =========================== */

// Frequency (monobit).
func Frequency(seq []int) map[string]any {
	n := len(seq)
	if n < 100 {
		return map[string]any{"isError": true, "n": n, "pValue": math.NaN()}
	}
	sum := 0
	for _, b := range seq {
		if b == 1 {
			sum++
		} else {
			sum--
		}
	}
	sObs := math.Abs(float64(sum)) / math.Sqrt(float64(n))
	p := math.Erfc(sObs / math.Sqrt2)
	return map[string]any{"pValue": p, "n": n, "sSum": sum, "sObs": sObs}
}

// BlockFrequency splits seq into blocks of m bits.
func BlockFrequency(seq []int, m int) map[string]any {
	n := len(seq)
	if n < 100 || m <= 0 {
		return map[string]any{"isError": true, "n": n, "pValue": math.NaN()}
	}
	blocks := n / m
	if blocks == 0 {
		return map[string]any{"isError": true, "n": n, "M": m, "N": 0, "pValue": math.NaN()}
	}
	chi := 0.0
	for i := 0; i < blocks; i++ {
		pi := float64(sumBits(seq[i*m:i*m+m])) / float64(m)
		chi += (pi - 0.5) * (pi - 0.5)
	}
	chi *= 4.0 * float64(m)
	p := igamc(float64(blocks)/2.0, chi/2.0)
	return map[string]any{"pValue": p, "n": n, "M": m, "N": blocks, "chiSqr": chi}
}

// Runs counts uninterrupted runs of identical bits.
func Runs(seq []int) map[string]any {
	n := len(seq)
	if n < 100 {
		return map[string]any{"isError": true, "n": n, "pValue": math.NaN()}
	}
	pi := float64(sumBits(seq)) / float64(n)
	tau := 2.0 / math.Sqrt(float64(n))
	if math.Abs(pi-0.5) > tau {
		return map[string]any{"isError": true, "n": n, "piObs": pi, "tau": tau, "pValue": math.NaN()}
	}
	vObs := 1
	for i := 1; i < n; i++ {
		if seq[i] != seq[i-1] {
			vObs++
		}
	}
	temp := (float64(vObs) - 2.0*float64(n)*pi*(1.0-pi)) / (2.0 * pi * (1.0 - pi) * math.Sqrt(2.0*float64(n)))
	p := math.Erfc(math.Abs(temp))
	return map[string]any{"pValue": p, "n": n, "vObs": vObs, "piObs": pi}
}

// LongestRun checks the longest run of ones per block.
func LongestRun(seq []int) map[string]any {
	n := len(seq)
	if n < 128 {
		return map[string]any{"isError": true, "n": n, "pValue": math.NaN()}
	}
	var k, m int
	var piVal []float64
	switch {
	case n < 6272:
		k, m = 3, 8
		piVal = []float64{0.21484375, 0.3671875, 0.23046875, 0.1875}
	case n < 750000:
		k, m = 5, 128
		piVal = []float64{0.1174035788, 0.242955959, 0.249363483, 0.17517706, 0.102701071, 0.112398847}
	default:
		k, m = 6, 10000
		piVal = []float64{0.0882, 0.2092, 0.2483, 0.1933, 0.1208, 0.0675, 0.0727}
	}
	// the lowest bucket collects every run up to its bound
	lo := map[int]int{8: 1, 128: 4, 10000: 10}[m]
	blocks := n / m
	nu := make([]int, k+1)
	for i := 0; i < blocks; i++ {
		longest, cur := 0, 0
		for j := 0; j < m; j++ {
			if seq[i*m+j] == 1 {
				cur++
				longest = max(longest, cur)
			} else {
				cur = 0
			}
		}
		bucket := longest - lo
		switch {
		case bucket < 0:
			bucket = 0
		case bucket > k:
			bucket = k
		}
		nu[bucket]++
	}
	chi := 0.0
	for i := 0; i <= k; i++ {
		exp := float64(blocks) * piVal[i]
		chi += (float64(nu[i]) - exp) * (float64(nu[i]) - exp) / exp
	}
	p := igamc(float64(k)/2.0, chi/2.0)
	return map[string]any{"pValue": p, "n": n, "M": m, "N": blocks, "chiSqr": chi}
}

// MatrixRank checks the rank of disjoint 32×32 binary matrices.
func MatrixRank(seq []int) map[string]any {
	n := len(seq)
	const rows, cols = 32, 32
	if n < 38*rows*cols {
		return map[string]any{"isError": true, "n": n, "pValue": math.NaN()}
	}
	blocks := n / (rows * cols)
	f32, f31 := 0, 0
	mat := make([]uint32, rows)
	for k := 0; k < blocks; k++ {
		offset := k * rows * cols
		for i := 0; i < rows; i++ {
			var row uint32
			for j := 0; j < cols; j++ {
				row <<= 1
				if seq[offset+i*cols+j] == 1 {
					row |= 1
				}
			}
			mat[i] = row
		}
		switch rankGF2(mat) {
		case 32:
			f32++
		case 31:
			f31++
		}
	}
	f30 := blocks - (f32 + f31)
	p32 := probRank(32, 32, 32)
	p31 := probRank(31, 32, 32)
	p30 := 1 - (p32 + p31)
	nb := float64(blocks)
	chi := math.Pow(float64(f32)-nb*p32, 2)/(nb*p32) +
		math.Pow(float64(f31)-nb*p31, 2)/(nb*p31) +
		math.Pow(float64(f30)-nb*p30, 2)/(nb*p30)
	p := math.Exp(-chi / 2.0)
	return map[string]any{"pValue": p, "n": n, "N": blocks, "F32": f32, "F31": f31, "F30": f30, "chiSqr": chi}
}

func rankGF2(a []uint32) int {
	mat := append([]uint32(nil), a...)
	rank := 0
	for col := 31; col >= 0 && rank < 32; col-- {
		mask := uint32(1) << uint(col)
		pivot := -1
		for r := rank; r < 32; r++ {
			if mat[r]&mask != 0 {
				pivot = r
				break
			}
		}
		if pivot == -1 {
			continue
		}
		mat[rank], mat[pivot] = mat[pivot], mat[rank]
		for r := 0; r < 32; r++ {
			if r != rank && mat[r]&mask != 0 {
				mat[r] ^= mat[rank]
			}
		}
		rank++
	}
	return rank
}

func probRank(r, m, n int) float64 {
	rf, mf, nf := float64(r), float64(m), float64(n)
	prod := 1.0
	for i := 0.0; i <= rf-1; i++ {
		num := (1 - math.Pow(2, i-mf)) * (1 - math.Pow(2, i-nf))
		den := 1 - math.Pow(2, i-rf)
		prod *= num / den
	}
	return math.Pow(2, rf*(mf+nf-rf)-mf*nf) * prod
}

// Serial checks the uniformity of overlapping m-bit patterns.
func Serial(seq []int, m int) map[string]any {
	n := len(seq)
	if n < SerialMinBits || m < 2 {
		return map[string]any{"isError": true, "n": n, "pValue1": math.NaN(), "pValue2": math.NaN()}
	}
	psi := func(mm int) float64 {
		if mm <= 0 {
			return 0
		}
		counts := make([]int, 1<<mm)
		for i := 0; i < n; i++ {
			idx := 0
			for j := 0; j < mm; j++ {
				idx = idx<<1 | seq[(i+j)%n]
			}
			counts[idx]++
		}
		sum := 0.0
		for _, c := range counts {
			sum += float64(c) * float64(c)
		}
		return sum*float64(int(1)<<mm)/float64(n) - float64(n)
	}
	psim0 := psi(m)
	psim1 := psi(m - 1)
	psim2 := psi(m - 2)
	del1 := psim0 - psim1
	del2 := psim0 - 2.0*psim1 + psim2
	p1 := igamc(float64(int(1)<<(m-1))/2.0, del1/2.0)
	p2 := igamc(float64(int(1)<<(m-2))/2.0, del2/2.0)
	return map[string]any{"pValue1": p1, "pValue2": p2, "n": n, "m": m}
}

// ApproxEntropy compares the frequencies of m and m+1 bit patterns.
func ApproxEntropy(seq []int, m int) map[string]any {
	n := len(seq)
	if n < 100 {
		return map[string]any{"isError": true, "n": n, "pValue": math.NaN()}
	}
	wrapped := make([]int, n+m)
	copy(wrapped, seq)
	copy(wrapped[n:], seq[:m])

	ap := make([]float64, 2)
	for bl := m; bl <= m+1; bl++ {
		counts := make([]int, 1<<bl)
		for i := 0; i < n; i++ {
			idx := 0
			for j := 0; j < bl; j++ {
				idx = idx<<1 | wrapped[i+j]
			}
			counts[idx]++
		}
		sum := 0.0
		for _, c := range counts {
			if c > 0 {
				sum += float64(c) * math.Log(float64(c)/float64(n))
			}
		}
		ap[bl-m] = sum / float64(n)
	}
	apen := ap[0] - ap[1]
	chi := 2.0 * float64(n) * (math.Ln2 - apen)
	p := igamc(float64(int(1)<<(m-1))/2.0, chi/2.0)
	return map[string]any{"pValue": p, "n": n, "m": m, "apen": apen, "chiSqr": chi}
}

// CumulativeSums runs the random-walk excursion test forwards and backwards.
func CumulativeSums(seq []int) map[string]any {
	n := len(seq)
	if n < 100 {
		return map[string]any{"isError": true, "n": n, "pValueFWD": math.NaN(), "pValueREV": math.NaN()}
	}
	fwd := cusumP(seq, n, func(k int) int { return k })
	rev := cusumP(seq, n, func(k int) int { return n - 1 - k })
	if math.IsNaN(fwd) {
		return map[string]any{"isError": true, "n": n, "pValueFWD": math.NaN(), "pValueREV": math.NaN()}
	}
	return map[string]any{"pValueFWD": fwd, "pValueREV": rev, "n": n}
}

func cusumP(seq []int, n int, at func(int) int) float64 {
	s, sup, inf := 0, 0, 0
	for k := 0; k < n; k++ {
		if seq[at(k)] == 1 {
			s++
		} else {
			s--
		}
		sup = max(sup, s)
		inf = min(inf, s)
	}
	z := max(sup, -inf)
	if z == 0 {
		return math.NaN()
	}
	nf, zf := float64(n), float64(z)
	sq := math.Sqrt(nf)
	sum1 := 0.0
	for k := int(math.Trunc((-nf/zf + 1.0) / 4.0)); k <= int(math.Trunc((nf/zf-1.0)/4.0)); k++ {
		kf := float64(k)
		sum1 += normalCDF((4.0*kf+1.0)*zf/sq) - normalCDF((4.0*kf-1.0)*zf/sq)
	}
	sum2 := 0.0
	for k := int(math.Trunc((-nf/zf - 3.0) / 4.0)); k <= int(math.Trunc((nf/zf-1.0)/4.0)); k++ {
		kf := float64(k)
		sum2 += normalCDF((4.0*kf+3.0)*zf/sq) - normalCDF((4.0*kf+1.0)*zf/sq)
	}
	return 1.0 - sum1 + sum2
}

/* ===========================
   report
   =========================== */

type TestRow struct {
	Name   string             `json:"name"`
	Values map[string]float64 `json:"values"`
	Status string             `json:"status"`
}

// MarshalJSON writes NaN and infinite values as null.
func (r TestRow) MarshalJSON() ([]byte, error) {
	vals := make(map[string]*float64, len(r.Values))
	for k, v := range r.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			vals[k] = nil
			continue
		}
		vals[k] = &v
	}
	return json.Marshal(struct {
		Name   string              `json:"name"`
		Values map[string]*float64 `json:"values"`
		Status string              `json:"status"`
	}{r.Name, vals, r.Status})
}

const (
	StatusPassed = "Passed"
	StatusFailed = "Failed"
)

// PassThreshold is the significance level of every test.
const PassThreshold = 0.01

func statusFromAll(ps ...float64) string {
	for _, p := range ps {
		if !(p >= PassThreshold) {
			return StatusFailed
		}
	}
	return StatusPassed
}

func buildReportTable(tests map[string]any) []TestRow {
	get := func(key, field string) float64 {
		if r, ok := tests[key].(map[string]any); ok {
			if f, ok := r[field].(float64); ok {
				return f
			}
		}
		return math.NaN()
	}
	row := func(name, key string, fields ...string) TestRow {
		vals := make(map[string]float64, len(fields))
		ps := make([]float64, 0, len(fields))
		for _, f := range fields {
			v := get(key, f)
			vals[f] = v
			ps = append(ps, v)
		}
		return TestRow{Name: name, Values: vals, Status: statusFromAll(ps...)}
	}
	return []TestRow{
		row("1. Frequency (Monobit) Test", "frequency", "pValue"),
		row("2. Frequency Test within a Block", "frequency_block", "pValue"),
		row("3. Runs Test", "runs", "pValue"),
		row("4. Longest Run of Ones in a Block", "longest_run", "pValue"),
		row("5. Binary Matrix Rank Test", "matrix_rank", "pValue"),
		row("6. Serial Test (m=2)", "serial_m2", "pValue1", "pValue2"),
		row("7. Approximate Entropy Test (m=2)", "approx_entropy_m2", "pValue"),
		row("8. Cumulative Sums (Cusum) Test", "cumulative_sums", "pValueFWD", "pValueREV"),
	}
}

// ComputeAllTests runs the suite on a bit sequence and returns the raw
// per-test details alongside the summary table.
func ComputeAllTests(seq []int) (map[string]any, []TestRow) {
	tests := map[string]any{
		"frequency":         Frequency(seq),
		"frequency_block":   BlockFrequency(seq, 128),
		"runs":              Runs(seq),
		"longest_run":       LongestRun(seq),
		"matrix_rank":       MatrixRank(seq),
		"serial_m2":         Serial(seq, 2),
		"approx_entropy_m2": ApproxEntropy(seq, 2),
		"cumulative_sums":   CumulativeSums(seq),
	}
	return tests, buildReportTable(tests)
}
