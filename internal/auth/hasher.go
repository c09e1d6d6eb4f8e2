// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest plaintext any hasher accepts.
// bcrypt ignores everything past 72 bytes, so longer input is refused
// rather than silently truncated.
const MaxPasswordBytes = 72

// DefaultBcryptCost is the work factor used for new hashes.
const DefaultBcryptCost = 10

// Hasher algorithm names accepted by NewPasswordHasher.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// argon2id defaults (OWASP recommendation).
const (
	DefaultArgon2Memory  = 64 * 1024 // KiB
	DefaultArgon2Time    = 1
	DefaultArgon2Threads = 4
	argon2SaltLen        = 16
	argon2KeyLen         = 32
)

// PasswordHasher provides salted one-way password hashing.
type PasswordHasher interface {
	// Hash produces a salted hash of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on a malformed hash.
	Verify(password, hash string) (bool, error)

	// Algorithm names the hash scheme, for metrics and logs.
	Algorithm() string
}

// HasherConfig selects and tunes a PasswordHasher.
type HasherConfig struct {
	Algorithm      string `koanf:"algorithm"`
	BcryptCost     int    `koanf:"bcrypt_cost"`
	Argon2MemoryKB uint32 `koanf:"argon2_memory_kib"`
	Argon2Time     uint32 `koanf:"argon2_time"`
	Argon2Threads  uint8  `koanf:"argon2_threads"`
}

// DefaultHasherConfig returns bcrypt at cost 10.
func DefaultHasherConfig() HasherConfig {
	return HasherConfig{
		Algorithm:      AlgorithmBcrypt,
		BcryptCost:     DefaultBcryptCost,
		Argon2MemoryKB: DefaultArgon2Memory,
		Argon2Time:     DefaultArgon2Time,
		Argon2Threads:  DefaultArgon2Threads,
	}
}

// NewPasswordHasher builds the hasher named by cfg.Algorithm.
func NewPasswordHasher(cfg HasherConfig) (PasswordHasher, error) {
	switch cfg.Algorithm {
	case "", AlgorithmBcrypt:
		return NewBcryptHasher(cfg.BcryptCost)
	case AlgorithmArgon2id:
		return NewArgon2idHasher(cfg.Argon2MemoryKB, cfg.Argon2Time, cfg.Argon2Threads), nil
	default:
		return nil, oops.Code("AUTH_HASHER_UNKNOWN").
			With("algorithm", cfg.Algorithm).
			Errorf("unknown password hash algorithm %q", cfg.Algorithm)
	}
}

func checkPlaintext(password string) error {
	if password == "" {
		return oops.Code("AUTH_CREDENTIAL_FAILED").Wrapf(ErrCredential, "password cannot be empty")
	}
	if len(password) > MaxPasswordBytes {
		return oops.Code("AUTH_CREDENTIAL_FAILED").
			With("max_bytes", MaxPasswordBytes).
			Wrapf(ErrCredential, "password exceeds %d bytes", MaxPasswordBytes)
	}
	return nil
}

func malformedHash(err error) error {
	return oops.Code("AUTH_CREDENTIAL_FAILED").Wrapf(errors.Join(ErrCredential, err), "malformed password hash")
}

// BcryptHasher implements PasswordHasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher. A zero cost selects DefaultBcryptCost.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, oops.Code("AUTH_HASHER_INVALID").
			With("cost", cost).
			Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

// Hash produces a bcrypt hash of the password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if err := checkPlaintext(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", oops.Code("AUTH_CREDENTIAL_FAILED").Wrap(errors.Join(ErrCredential, err))
	}
	return string(hash), nil
}

// Verify checks if the password matches the bcrypt hash.
func (h *BcryptHasher) Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, malformedHash(err)
	}
}

// Algorithm returns "bcrypt".
func (h *BcryptHasher) Algorithm() string { return AlgorithmBcrypt }

// Argon2idHasher implements PasswordHasher using argon2id in PHC string format.
type Argon2idHasher struct {
	memory  uint32
	time    uint32
	threads uint8
}

// NewArgon2idHasher creates an Argon2idHasher. Zero parameters select the defaults.
func NewArgon2idHasher(memoryKB, time uint32, threads uint8) *Argon2idHasher {
	if memoryKB == 0 {
		memoryKB = DefaultArgon2Memory
	}
	if time == 0 {
		time = DefaultArgon2Time
	}
	if threads == 0 {
		threads = DefaultArgon2Threads
	}
	return &Argon2idHasher{memory: memoryKB, time: time, threads: threads}
}

// Hash produces an argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if err := checkPlaintext(password); err != nil {
		return "", err
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_CREDENTIAL_FAILED").Wrap(errors.Join(ErrCredential, err))
	}

	key := argon2.IDKey([]byte(password), salt, h.time, h.memory, h.threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memory,
		h.time,
		h.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks if the password matches the argon2id hash.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != AlgorithmArgon2id {
		return false, malformedHash(errors.New("not an argon2id PHC string"))
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, malformedHash(err)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, malformedHash(err)
	}
	if threads == 0 || threads > 255 {
		return false, malformedHash(fmt.Errorf("threads value %d out of range", threads))
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, malformedHash(err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, malformedHash(err)
	}
	if len(expected) == 0 || len(expected) > 1<<10 {
		return false, malformedHash(fmt.Errorf("invalid key length %d", len(expected)))
	}

	computed := argon2.IDKey([]byte(password), salt, time, memory, uint8(threads), uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// Algorithm returns "argon2id".
func (h *Argon2idHasher) Algorithm() string { return AlgorithmArgon2id }
