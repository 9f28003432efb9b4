// Package hash provides hashing utilities.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
)

const sha256Prefix = "sha256:"

// SHA256 computes the SHA256 hash of data and returns it as a hex string.
func SHA256(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SHA256String computes the SHA256 hash of a string.
func SHA256String(s string) string {
	return SHA256([]byte(s))
}

// SHA256Short returns the first n characters of a SHA256 hash.
func SHA256Short(data []byte, n int) string {
	h := SHA256(data)
	if n > len(h) {
		return h
	}
	return h[:n]
}

// Fingerprint computes the content fingerprint of a file, in the
// "sha256:<hex>" form used throughout the cache and object-store layers.
func Fingerprint(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return sha256Prefix + hex.EncodeToString(h.Sum(nil)), nil
}

// IsSHA256Fingerprint reports whether fingerprint carries the "sha256:"
// prefix this codebase produces and consumes exclusively.
func IsSHA256Fingerprint(fingerprint string) bool {
	return strings.HasPrefix(fingerprint, sha256Prefix)
}

// SafeStorageKey replaces ':' with '_' so a fingerprint can be embedded in a
// filesystem path or object-store key component.
func SafeStorageKey(fingerprint string) string {
	return strings.ReplaceAll(fingerprint, ":", "_")
}
