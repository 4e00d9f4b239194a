package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"img-chaos/internal/imgcipher"
)

const (
	bundleFormatJSON = "json"
	bundleFormatBin  = "bin"
)

// bundleFormatFor picks the encoding from a file name: .json is JSON,
// anything else the binary wire format.
func bundleFormatFor(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".json") {
		return bundleFormatJSON
	}
	return bundleFormatBin
}

func encodeBundle(w io.Writer, b *imgcipher.KeyBundle, format string) error {
	switch format {
	case bundleFormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	case bundleFormatBin:
		data, err := b.MarshalBinary()
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown bundle format %q", format)
	}
}

// decodeBundle accepts either encoding; JSON is recognised by its leading '{'.
func decodeBundle(data []byte) (*imgcipher.KeyBundle, error) {
	var b imgcipher.KeyBundle
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return nil, fmt.Errorf("%w: %w", imgcipher.ErrPermutationMismatch, err)
		}
		return &b, nil
	}
	if err := b.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &b, nil
}
