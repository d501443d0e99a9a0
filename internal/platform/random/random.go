// Package random provides the randomness capability used by the engine.
//
// Salts and seeds must come from a cryptographically secure source, but the
// engine never reads crypto/rand directly: callers inject a Source so tests
// can run with deterministic bytes.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
)

// Source supplies cryptographically secure random bytes.
type Source interface {
	// Bytes fills a new slice of length n with random bytes.
	Bytes(n int) ([]byte, error)
}

// CryptoSource is a Source backed by crypto/rand.
type CryptoSource struct{}

// Bytes returns n bytes read from crypto/rand.
func (CryptoSource) Bytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := crand.Read(buf); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return buf, nil
}

// NewSeed generates a random int64 seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
