// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// mintAttempts bounds retries after a token hash collision.
const mintAttempts = 3

// SessionManager mints and resolves session tokens.
type SessionManager struct {
	sessions    SessionRepository
	accounts    AccountRepository
	tokens      TokenGenerator
	tokenLength int
	now         func() time.Time
}

// SessionManagerOption configures a SessionManager.
type SessionManagerOption func(*SessionManager)

// WithTokenLength overrides DefaultTokenLength.
func WithTokenLength(n int) SessionManagerOption {
	return func(m *SessionManager) {
		if n > 0 {
			m.tokenLength = n
		}
	}
}

// WithTokenGenerator replaces the crypto/rand generator.
func WithTokenGenerator(g TokenGenerator) SessionManagerOption {
	return func(m *SessionManager) {
		if g != nil {
			m.tokens = g
		}
	}
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(sessions SessionRepository, accounts AccountRepository, opts ...SessionManagerOption) (*SessionManager, error) {
	if sessions == nil {
		return nil, oops.Code("SESSION_MANAGER_INVALID_CONFIG").Errorf("session repository is required")
	}
	if accounts == nil {
		return nil, oops.Code("SESSION_MANAGER_INVALID_CONFIG").Errorf("account repository is required")
	}
	m := &SessionManager{
		sessions:    sessions,
		accounts:    accounts,
		tokens:      NewRandomTokenGenerator(),
		tokenLength: DefaultTokenLength,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// CreateSession mints a fresh token for accountID and stores its session.
// The plaintext token is returned once and not retained.
func (m *SessionManager) CreateSession(ctx context.Context, accountID ulid.ULID) (*Session, string, error) {
	var (
		session *Session
		token   string
	)
	backoff := retry.WithMaxRetries(mintAttempts-1, retry.NewConstant(time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		t, err := m.tokens.Generate(m.tokenLength)
		if err != nil {
			return err
		}
		s, err := NewSession(accountID, HashToken(t), m.now())
		if err != nil {
			return err
		}
		if err := m.sessions.Create(ctx, s); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return retry.RetryableError(err)
			}
			return err
		}
		session, token = s, t
		return nil
	})
	if err != nil {
		return nil, "", oops.Code("SESSION_CREATE_FAILED").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return session, token, nil
}

// Resolve returns the account that owns token. Unknown or malformed tokens
// yield ErrNotFound.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*Account, error) {
	if !IsWellFormedToken(token) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(ErrNotFound)
	}

	session, err := m.sessions.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_NOT_FOUND").Wrap(err)
		}
		return nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	account, err := m.accounts.GetByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_NOT_FOUND").
				With("account_id", session.AccountID.String()).
				Wrap(err)
		}
		return nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get owning account").
			With("account_id", session.AccountID.String()).
			Wrap(err)
	}
	return account, nil
}

// ListSessions returns the sessions owned by accountID.
func (m *SessionManager) ListSessions(ctx context.Context, accountID ulid.ULID) ([]*Session, error) {
	sessions, err := m.sessions.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return sessions, nil
}
