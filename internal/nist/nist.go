// Package nist implements a subset of the NIST SP 800-22 statistical test
// suite in pure Go. Each test takes a sequence of 0/1 ints and returns its raw
// figures keyed by name; ComputeAllTests also builds the pass/fail table.
package nist

import (
	"errors"
	"math"
)

// RunMonobit runs the frequency test on packed bytes, MSB first.
func RunMonobit(data []byte) (float64, error) {
	if len(data) == 0 {
		return 0, errors.New("nist: empty input")
	}
	res := Frequency(UnpackBitsMSB(data))
	p, _ := res["pValue"].(float64)
	if math.IsNaN(p) {
		return 0, errors.New("nist: input too short for the frequency test")
	}
	return p, nil
}
