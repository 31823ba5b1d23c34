package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed keys.
// Version suffix enables future algorithm migration.
const (
	DomainCmdKey   = "uniflow/cmd-key/v1"
	DomainBatchKey = "uniflow/batch-key/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// KeyOf computes a value-equality key from the fields that identify a
// command instance. Two commands of the same type with equal fields get
// equal keys, independent of map iteration order or string normalization.
//
// Example:
//
//	func (c FetchUser) CmdKey() string { return ir.MustKey(c.UserID, c.Page) }
func KeyOf(fields ...any) (string, error) {
	if len(fields) == 0 {
		return "", nil
	}
	canonical, err := MarshalCanonical(fields)
	if err != nil {
		return "", fmt.Errorf("KeyOf: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCmdKey, canonical), nil
}

// MustKey is like KeyOf but panics on error.
// Use only when the fields are known to be canonical (no floats, no nil).
func MustKey(fields ...any) string {
	key, err := KeyOf(fields...)
	if err != nil {
		panic(err)
	}
	return key
}
