// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

// Package redis implements auth.SessionRepository on Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/dungeondash/dungeondash/internal/auth"
)

// DefaultPrefix namespaces every key the repository writes.
const DefaultPrefix = "dungeondash:session:"

// record is the JSON value stored under a token key.
type record struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionRepository stores sessions as
//
//	<prefix>token:<hash>      -> JSON record (SETNX, no TTL)
//	<prefix>account:<id>      -> list of token hashes, oldest first
type SessionRepository struct {
	client goredis.UniversalClient
	prefix string
}

// NewSessionRepository creates a Redis-backed session repository.
func NewSessionRepository(client goredis.UniversalClient) *SessionRepository {
	return NewSessionRepositoryWithPrefix(client, DefaultPrefix)
}

// NewSessionRepositoryWithPrefix uses a custom key prefix.
func NewSessionRepositoryWithPrefix(client goredis.UniversalClient, prefix string) *SessionRepository {
	return &SessionRepository{client: client, prefix: prefix}
}

func (r *SessionRepository) tokenKey(hash string) string {
	return r.prefix + "token:" + hash
}

func (r *SessionRepository) accountKey(id ulid.ULID) string {
	return r.prefix + "account:" + id.String()
}

// Create stores the session. SETNX on the token key makes the insert
// atomic; an existing key is reported as auth.ErrDuplicate. If the account
// index cannot be updated the token key is removed again.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	data, err := json.Marshal(record{
		ID:        session.ID.String(),
		AccountID: session.AccountID.String(),
		CreatedAt: session.CreatedAt,
	})
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").With("operation", "marshal session").Wrap(err)
	}

	ok, err := r.client.SetNX(ctx, r.tokenKey(session.TokenHash), data, 0).Result()
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "setnx token").
			With("account_id", session.AccountID.String()).
			Wrap(err)
	}
	if !ok {
		return oops.Code("SESSION_DUPLICATE").
			With("session_id", session.ID.String()).
			Wrap(auth.ErrDuplicate)
	}

	if err := r.client.RPush(ctx, r.accountKey(session.AccountID), session.TokenHash).Err(); err != nil {
		// an unindexed token must not stay resolvable
		if delErr := r.client.Del(context.WithoutCancel(ctx), r.tokenKey(session.TokenHash)).Err(); delErr != nil {
			err = errors.Join(err, delErr)
		}
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "index session by account").
			With("account_id", session.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	data, err := r.client.Get(ctx, r.tokenKey(tokenHash)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get token").
			Wrap(err)
	}
	return decode(tokenHash, data)
}

// ListByAccount returns the account's sessions, oldest first.
func (r *SessionRepository) ListByAccount(ctx context.Context, accountID ulid.ULID) ([]*auth.Session, error) {
	hashes, err := r.client.LRange(ctx, r.accountKey(accountID), 0, -1).Result()
	if err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").
			With("operation", "read account index").
			With("account_id", accountID.String()).
			Wrap(err)
	}

	sessions := make([]*auth.Session, 0, len(hashes))
	if len(hashes) == 0 {
		return sessions, nil
	}

	keys := make([]string, len(hashes))
	for i, h := range hashes {
		keys[i] = r.tokenKey(h)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").
			With("operation", "mget sessions").
			With("account_id", accountID.String()).
			Wrap(err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// index entry whose token key is gone
			continue
		}
		session, err := decode(hashes[i], []byte(s))
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func decode(tokenHash string, data []byte) (*auth.Session, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, oops.Code("SESSION_SCAN_FAILED").With("operation", "unmarshal session").Wrap(err)
	}
	id, err := ulid.Parse(rec.ID)
	if err != nil {
		return nil, oops.Code("SESSION_SCAN_FAILED").With("operation", "parse session id").Wrap(err)
	}
	accountID, err := ulid.Parse(rec.AccountID)
	if err != nil {
		return nil, oops.Code("SESSION_SCAN_FAILED").With("operation", "parse account id").Wrap(err)
	}
	return &auth.Session{
		ID:        id,
		AccountID: accountID,
		TokenHash: tokenHash,
		CreatedAt: rec.CreatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
