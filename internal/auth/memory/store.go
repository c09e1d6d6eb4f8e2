// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

// Package memory provides in-process account and session repositories for
// development and tests. Data does not survive a restart.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dungeondash/dungeondash/internal/auth"
)

// AccountStore is a mutex-guarded auth.AccountRepository.
type AccountStore struct {
	mu         sync.RWMutex
	byID       map[ulid.ULID]*auth.Account
	byUsername map[string]ulid.ULID
}

// NewAccountStore creates an empty AccountStore.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		byID:       make(map[ulid.ULID]*auth.Account),
		byUsername: make(map[string]ulid.ULID),
	}
}

// Create inserts account unless its username or ID is already present.
func (s *AccountStore) Create(_ context.Context, account *auth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[account.Username]; ok {
		return oops.Code("ACCOUNT_DUPLICATE").With("username", account.Username).Wrap(auth.ErrDuplicate)
	}
	if _, ok := s.byID[account.ID]; ok {
		return oops.Code("ACCOUNT_DUPLICATE").With("account_id", account.ID.String()).Wrap(auth.ErrDuplicate)
	}
	stored := copyAccount(account)
	s.byID[stored.ID] = stored
	s.byUsername[stored.Username] = stored.ID
	return nil
}

// GetByID returns a copy of the account.
func (s *AccountStore) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byID[id]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("account_id", id.String()).Wrap(auth.ErrNotFound)
	}
	return copyAccount(account), nil
}

// GetByUsername returns a copy of the account with exactly this username.
func (s *AccountStore) GetByUsername(_ context.Context, username string) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("username", username).Wrap(auth.ErrNotFound)
	}
	return copyAccount(s.byID[id]), nil
}

// Len returns the number of stored accounts.
func (s *AccountStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// SessionStore is a mutex-guarded auth.SessionRepository.
type SessionStore struct {
	mu        sync.RWMutex
	byHash    map[string]*auth.Session
	byAccount map[ulid.ULID][]*auth.Session
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		byHash:    make(map[string]*auth.Session),
		byAccount: make(map[ulid.ULID][]*auth.Session),
	}
}

// Create inserts session unless its token hash is already present.
func (s *SessionStore) Create(_ context.Context, session *auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byHash[session.TokenHash]; ok {
		return oops.Code("SESSION_DUPLICATE").With("session_id", session.ID.String()).Wrap(auth.ErrDuplicate)
	}
	stored := *session
	s.byHash[stored.TokenHash] = &stored
	s.byAccount[stored.AccountID] = append(s.byAccount[stored.AccountID], &stored)
	return nil
}

// GetByTokenHash returns a copy of the session keyed by tokenHash.
func (s *SessionStore) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.byHash[tokenHash]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	found := *session
	return &found, nil
}

// ListByAccount returns copies of the account's sessions in insertion order.
func (s *SessionStore) ListByAccount(_ context.Context, accountID ulid.ULID) ([]*auth.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := s.byAccount[accountID]
	out := make([]*auth.Session, 0, len(owned))
	for _, session := range owned {
		found := *session
		out = append(out, &found)
	}
	return out, nil
}

func copyAccount(a *auth.Account) *auth.Account {
	c := *a
	c.Attributes = maps.Clone(a.Attributes)
	for k, v := range c.Attributes {
		if list, ok := v.([]any); ok {
			c.Attributes[k] = slices.Clone(list)
		}
	}
	return &c
}

var (
	_ auth.AccountRepository = (*AccountStore)(nil)
	_ auth.SessionRepository = (*SessionStore)(nil)
)
