package jcs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gowebpki/jcs"
)

var ErrDigestMismatch = errors.New("digest mismatch")

// Canonicalize marshals value to JSON and returns its canonical form.
func Canonicalize(value any) ([]byte, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode digest input: %w", err)
	}
	canonical, err := jcs.Transform(encoded)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return canonical, nil
}

// Digest returns the lowercase sha256 hex of the canonical form of value.
func Digest(value any) (string, error) {
	canonical, err := Canonicalize(value)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes the digest of value and compares it with want.
func Verify(value any, want string) error {
	got, err := Digest(value)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: have %s, computed %s", ErrDigestMismatch, want, got)
	}
	return nil
}
