// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session binds a bearer token to an account. Only the SHA-256 hash of the
// token is kept; the plaintext is handed to the caller once, at mint time.
// Sessions have no expiry and are never revoked.
type Session struct {
	ID        ulid.ULID
	AccountID ulid.ULID
	TokenHash string
	CreatedAt time.Time
}

// NewSession creates a Session for accountID keyed by tokenHash.
func NewSession(accountID ulid.ULID, tokenHash string, createdAt time.Time) (*Session, error) {
	if accountID.IsZero() {
		return nil, oops.Code("SESSION_INVALID").Errorf("account ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID").Errorf("token hash cannot be empty")
	}
	return &Session{
		ID:        ulid.Make(),
		AccountID: accountID,
		TokenHash: tokenHash,
		CreatedAt: createdAt.UTC(),
	}, nil
}

// SessionRepository persists sessions. Create must be an atomic
// insert-if-absent on TokenHash and return ErrDuplicate on collision.
type SessionRepository interface {
	// Create persists a new session.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash returns ErrNotFound if no session has this hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// ListByAccount returns the account's sessions, oldest first.
	ListByAccount(ctx context.Context, accountID ulid.ULID) ([]*Session, error)
}
