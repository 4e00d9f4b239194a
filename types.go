package main

import (
	"time"

	"img-chaos/internal/grid"
	"img-chaos/internal/imgcipher"
	"img-chaos/internal/metrics"
)

// CipherSettings records the pipeline modes used for one encryption.
type CipherSettings struct {
	Size         int    `json:"size"`
	Scramble     string `json:"scramble"`
	FractalOrder int    `json:"fractal_order,omitempty"`
	Keying       string `json:"keying"`
	Keystream    string `json:"keystream"`
	Combine      string `json:"combine"`
}

// Record is one encryption kept by the service. The passphrase is never
// stored; the cipher image and the key bundle are.
type Record struct {
	TxID       string               `json:"tx_id"`
	CreatedAt  time.Time            `json:"created_at"`
	Source     string               `json:"source,omitempty"` // uploaded file name
	Settings   CipherSettings       `json:"settings"`
	Cipher     grid.Image           `json:"cipher"`
	Palette    []string             `json:"palette"` // "#rrggbb" per index
	Bundle     *imgcipher.KeyBundle `json:"bundle"`
	PlainHash  string               `json:"plain_hash"`  // SHA256(plain indices)
	CipherHash string               `json:"cipher_hash"` // SHA256(cipher indices)
	BundleHash string               `json:"bundle_hash"` // SHA256(binary bundle)
	Published  string               `json:"published"`   // SHA256(cipherHash || bundleHash || label)
	Report     *metrics.Report      `json:"report,omitempty"`
}

type Block struct {
	Index     int    `json:"index"`
	Timestamp int64  `json:"timestamp"`
	TxID      string `json:"tx_id"`
	DataHash  string `json:"data_hash"` // published
	PrevHash  string `json:"prev_hash"`
	Hash      string `json:"hash"`
}
