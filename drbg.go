package main

import (
	"crypto/hmac"
	"crypto/sha256"
)

// hmacDRBG is a minimal HMAC-SHA256 DRBG (SP 800-90A style). It has no
// reseed counter; callers construct a fresh one per use.
type hmacDRBG struct {
	k []byte
	v []byte
}

func newHMACDRBG(seedMaterial []byte) *hmacDRBG {
	k := make([]byte, sha256.Size)
	v := make([]byte, sha256.Size)
	for i := range v {
		v[i] = 0x01
	}
	d := &hmacDRBG{k: k, v: v}
	d.update(seedMaterial)
	return d
}

func (d *hmacDRBG) mac(parts ...[]byte) []byte {
	m := hmac.New(sha256.New, d.k)
	for _, p := range parts {
		m.Write(p)
	}
	return m.Sum(nil)
}

func (d *hmacDRBG) update(provided []byte) {
	d.k = d.mac(d.v, []byte{0x00}, provided)
	d.v = d.mac(d.v)
	if len(provided) == 0 {
		return
	}
	d.k = d.mac(d.v, []byte{0x01}, provided)
	d.v = d.mac(d.v)
}

// Read fills p and always succeeds; it makes the generator an io.Reader.
func (d *hmacDRBG) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		d.v = d.mac(d.v)
		n += copy(p[n:], d.v)
	}
	d.update(nil)
	return n, nil
}
