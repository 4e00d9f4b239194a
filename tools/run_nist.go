//go:build tools
// +build tools

package main

import (
	"fmt"
	"log"
	"os"

	"img-chaos/internal/nist"
)

// Runs the randomness suite on a file: a 0/1 text file, one byte per bit, or
// packed bytes (e.g. the raw pixel indices of a cipher image).
func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: run_nist <input-file> [txt|bin01|binpacked]")
	}
	b, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("read input: %v", err)
	}
	mode := nist.FileModeUnknown
	if len(os.Args) > 2 {
		mode = nist.ModeFromString(os.Args[2])
	}

	p, err := nist.RunMonobit(b)
	if err != nil {
		log.Fatalf("nist test: %v", err)
	}
	fmt.Printf("Monobit p-value (packed bytes): %f\n", p)

	bits, err := nist.ParseBits(b, mode)
	if err != nil {
		log.Fatalf("parse bits: %v", err)
	}
	_, rows := nist.ComputeAllTests(bits)
	fmt.Printf("%d bits\n", len(bits))
	for _, r := range rows {
		fmt.Printf("%-40s %-7s %v\n", r.Name, r.Status, r.Values)
	}
}
