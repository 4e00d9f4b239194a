package nist

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// FileMode is the layout of an uploaded bit stream.
type FileMode int

const (
	FileModeUnknown      FileMode = iota - 1
	FileModeTXT                   // text; every character other than '0'/'1' is skipped
	FileModeBinBytes01            // one bit per byte, 0x00 or 0x01
	FileModeBinPackedMSB          // packed bits, MSB first
)

var ErrNoBits = errors.New("nist: no bits found")

// BitsFromString collects the '0'/'1' characters of s, skipping whitespace.
func BitsFromString(s string) ([]int, error) {
	out := make([]int, 0, len(s))
	for _, r := range s {
		switch r {
		case '0':
			out = append(out, 0)
		case '1':
			out = append(out, 1)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoBits
	}
	return out, nil
}

// BitsFromBytes01 reads one bit per byte.
func BitsFromBytes01(b []byte) ([]int, error) {
	out := make([]int, 0, len(b))
	for i, by := range b {
		switch by {
		case 0x00, 0x01:
			out = append(out, int(by))
		default:
			return nil, fmt.Errorf("nist: byte #%d=0x%02X is not 0x00/0x01", i, by)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoBits
	}
	return out, nil
}

// UnpackBitsMSB expands each byte into eight bits, most significant first.
func UnpackBitsMSB(b []byte) []int {
	out := make([]int, 0, len(b)*8)
	for _, by := range b {
		for bit := 7; bit >= 0; bit-- {
			out = append(out, int(by>>uint(bit))&1)
		}
	}
	return out
}

// GuessBinMode treats data made only of 0x00/0x01 bytes as one bit per byte.
func GuessBinMode(b []byte) FileMode {
	if len(b) == 0 {
		return FileModeBinPackedMSB
	}
	for _, by := range b {
		if by != 0 && by != 1 {
			return FileModeBinPackedMSB
		}
	}
	return FileModeBinBytes01
}

// LooksLikeBitsString reports whether s holds only '0', '1' and whitespace.
func LooksLikeBitsString(s string) bool {
	count := 0
	for _, r := range s {
		switch {
		case r == '0' || r == '1':
			count++
		case unicode.IsSpace(r):
		default:
			return false
		}
	}
	return count > 0
}

// ModeFromString parses txt, bin01 or binpacked.
func ModeFromString(s string) FileMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "txt":
		return FileModeTXT
	case "bin01":
		return FileModeBinBytes01
	case "binpacked":
		return FileModeBinPackedMSB
	default:
		return FileModeUnknown
	}
}

// ParseBits decodes data in the given mode; FileModeUnknown guesses.
func ParseBits(data []byte, mode FileMode) ([]int, error) {
	if mode == FileModeUnknown {
		if LooksLikeBitsString(string(data)) {
			mode = FileModeTXT
		} else {
			mode = GuessBinMode(data)
		}
	}
	switch mode {
	case FileModeTXT:
		return BitsFromString(string(data))
	case FileModeBinBytes01:
		return BitsFromBytes01(data)
	case FileModeBinPackedMSB:
		bits := UnpackBitsMSB(data)
		if len(bits) == 0 {
			return nil, ErrNoBits
		}
		return bits, nil
	default:
		return nil, fmt.Errorf("nist: unknown bit mode %d", mode)
	}
}
