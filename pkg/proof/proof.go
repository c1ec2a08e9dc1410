// Package proof produces proof hashes: SHA-256 digests rendered as 0x-prefixed
// lowercase hex, the format milestones accept.
package proof

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// HashBytes returns the proof hash of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return format(sum[:])
}

// HashText returns the proof hash of the UTF-8 bytes of s.
func HashText(s string) string {
	return HashBytes([]byte(s))
}

// HashReader streams r into SHA-256.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash input: %w", err)
	}
	return format(h.Sum(nil)), nil
}

// HashFile returns the proof hash of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return HashReader(f)
}

func format(sum []byte) string {
	return "0x" + hex.EncodeToString(sum)
}
