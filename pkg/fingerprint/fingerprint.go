// Package fingerprint computes content fingerprints used for change detection.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Length is the number of hex characters in a fingerprint.
const Length = sha256.Size * 2

// ErrInvalidFingerprint is returned when a string is not a well-formed fingerprint.
var ErrInvalidFingerprint = errors.New("invalid fingerprint")

// Fingerprint is the lowercase hex SHA-256 digest of normalized content.
type Fingerprint string

// Compute returns the SHA-256 fingerprint of the UTF-8 bytes of content.
// Identical content always yields the identical fingerprint, whichever article it came from.
func Compute(content string) Fingerprint {
	sum := sha256.Sum256([]byte(content))

	return Fingerprint(hex.EncodeToString(sum[:]))
}

// Parse validates s and returns it as a Fingerprint.
func Parse(s string) (Fingerprint, error) {
	if !Valid(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFingerprint, s)
	}

	return Fingerprint(s), nil
}

// Valid reports whether s is a 64 character lowercase hex string.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}

	return true
}

// String returns the hex digest.
func (f Fingerprint) String() string {
	return string(f)
}

// Short returns the first 12 characters, for log lines.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}

	return string(f[:12])
}
