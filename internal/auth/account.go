// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

package auth

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Credential policy.
const (
	MinUsernameLength = 3
	MinPasswordLength = 6
)

// Attributes is the opaque, game-defined payload stored with an account.
// Values are primitives (string, bool, number, nil) or flat lists of them.
type Attributes map[string]any

// Account is a registered player identity.
type Account struct {
	ID           ulid.ULID
	Username     string
	PasswordHash string `json:"-"`
	Attributes   Attributes
	CreatedAt    time.Time
}

// PublicAccount is the outward projection of an Account. It has no
// credential field, so it cannot leak one.
type PublicAccount struct {
	ID         ulid.ULID  `json:"id"`
	Username   string     `json:"username"`
	Attributes Attributes `json:"attributes"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Public returns the account without its password hash.
func (a *Account) Public() *PublicAccount {
	attrs := a.Attributes
	if attrs == nil {
		attrs = Attributes{}
	}
	return &PublicAccount{
		ID:         a.ID,
		Username:   a.Username,
		Attributes: attrs,
		CreatedAt:  a.CreatedAt,
	}
}

// AccountRepository persists accounts. Create must be an atomic
// insert-if-absent on Username and return ErrDuplicate when the username
// already exists.
type AccountRepository interface {
	// Create persists a new account.
	Create(ctx context.Context, account *Account) error

	// GetByID returns ErrNotFound if no account has this ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByUsername matches the stored username exactly.
	// Returns ErrNotFound if absent.
	GetByUsername(ctx context.Context, username string) (*Account, error)
}

// NormalizeUsername trims surrounding whitespace.
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

// ValidateCredentials checks an already trimmed username and a raw password
// against the credential policy. Lengths count characters, not bytes,
// except for the hasher's byte ceiling.
func ValidateCredentials(username, password string) error {
	if utf8.RuneCountInString(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min_length", MinUsernameLength).
			Wrap(ErrUsernameTooShort)
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("min_length", MinPasswordLength).
			Wrap(ErrPasswordTooShort)
	}
	if len(password) > MaxPasswordBytes {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("max_bytes", MaxPasswordBytes).
			Wrap(ErrPasswordTooLong)
	}
	return nil
}

// ValidateAttributes rejects nested objects and nested lists.
func ValidateAttributes(attrs Attributes) error {
	for key, value := range attrs {
		if !isPrimitive(value) && !isPrimitiveList(value) {
			return oops.Code("AUTH_INVALID_ATTRIBUTES").
				With("attribute", key).
				Wrap(ErrInvalidAttributes)
		}
	}
	return nil
}

func isPrimitive(v any) bool {
	switch v.(type) {
	case nil, string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

func isPrimitiveList(v any) bool {
	switch list := v.(type) {
	case []string, []bool, []int, []int64, []float64:
		return true
	case []any:
		for _, item := range list {
			if !isPrimitive(item) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
