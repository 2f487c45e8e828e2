// Package contenthash computes the content identity used for deduplication.
package contenthash

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// HexLen is the length of a digest returned by Sum.
const HexLen = sha256.Size * 2

// Sum streams r through SHA-256 and returns the lowercase hex digest and the byte count.
func Sum(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, fmt.Errorf("hash content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// SumBytes is Sum over an in-memory payload.
func SumBytes(b []byte) string {
	s, _, _ := Sum(bytes.NewReader(b))
	return s
}

// Valid reports whether s looks like a digest produced by Sum.
func Valid(s string) bool {
	if len(s) != HexLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
