// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/samber/oops"
)

// TokenAlphabet is the symbol set for session tokens.
const TokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// DefaultTokenLength gives 32 * log2(62) ≈ 190 bits of entropy.
const DefaultTokenLength = 32

// Largest multiple of len(TokenAlphabet) that fits in a byte. Bytes at or
// above it are discarded so every symbol is equally likely.
const tokenRejectAbove = 256 - 256%len(TokenAlphabet)

// TokenGenerator produces opaque session tokens.
type TokenGenerator interface {
	Generate(length int) (string, error)
}

// RandomTokenGenerator draws tokens from a cryptographically secure source.
type RandomTokenGenerator struct {
	source io.Reader
}

// NewRandomTokenGenerator creates a generator backed by crypto/rand.
func NewRandomTokenGenerator() *RandomTokenGenerator {
	return &RandomTokenGenerator{source: rand.Reader}
}

// NewTokenGeneratorFromReader creates a generator over an arbitrary byte
// source. Intended for tests; production code must use crypto/rand.
func NewTokenGeneratorFromReader(r io.Reader) *RandomTokenGenerator {
	return &RandomTokenGenerator{source: r}
}

// Generate returns a token of length symbols from TokenAlphabet.
func (g *RandomTokenGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("length", length).
			Errorf("token length must be positive")
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length+length/4)
	for len(out) < length {
		if _, err := io.ReadFull(g.source, buf); err != nil {
			return "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").Wrap(err)
		}
		for _, b := range buf {
			if int(b) >= tokenRejectAbove {
				continue
			}
			out = append(out, TokenAlphabet[int(b)%len(TokenAlphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// IsWellFormedToken reports whether token is non-empty and uses only
// TokenAlphabet symbols.
func IsWellFormedToken(token string) bool {
	if token == "" {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// HashToken returns the SHA-256 hex digest under which a token is stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
