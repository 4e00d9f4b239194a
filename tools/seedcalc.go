//go:build tools
// +build tools

package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"

	"img-chaos/internal/keysched"
)

// Prints the chaotic initial conditions a passphrase maps to, optionally
// mixed with an image digest given as hex.
func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: seedcalc <passphrase> [image-digest-hex]")
	}
	pass := os.Args[1]
	h := sha256.Sum256([]byte(pass))
	fmt.Printf("sha256=%s\n", hex.EncodeToString(h[:]))

	c, err := keysched.DeriveFromPassphrase(pass)
	if err != nil {
		log.Fatalf("derive: %v", err)
	}
	fmt.Printf("x0=%.16f\np0=%.16f\n", c.X0, c.P0)

	r, err := keysched.DeriveReseeded(pass, "diffusion")
	if err != nil {
		log.Fatalf("derive reseeded: %v", err)
	}
	fmt.Printf("diffusion x0=%.16f p0=%.16f\n", r.X0, r.P0)

	if len(os.Args) > 2 {
		d, err := hex.DecodeString(os.Args[2])
		if err != nil {
			log.Fatalf("decode digest: %v", err)
		}
		ic, err := keysched.DeriveWithImage(pass, d)
		if err != nil {
			log.Fatalf("derive with image: %v", err)
		}
		fmt.Printf("image-keyed x0=%.16f p0=%.16f\n", ic.X0, ic.P0)
	}
}
