package common

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// MakeRandHexString generates a random hexadecimal string of the given size.
// The size parameter specifies the number of random bytes to generate before
// encoding them, so the final string length is twice the size.
//
// It returns an error if the random number generator fails.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateRandByteArray returns size random bytes. It panics only if the
// system random source is broken.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// NormalizeEmail lowercases and trims an email so that lookups and the
// uniqueness check compare a single canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
