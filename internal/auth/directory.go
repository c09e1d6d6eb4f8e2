// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Directory owns account records: lookup, uniqueness and creation.
type Directory struct {
	accounts AccountRepository
	hasher   PasswordHasher
	now      func() time.Time
}

// NewDirectory creates a Directory.
func NewDirectory(accounts AccountRepository, hasher PasswordHasher) (*Directory, error) {
	if accounts == nil {
		return nil, oops.Code("DIRECTORY_INVALID_CONFIG").Errorf("account repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("DIRECTORY_INVALID_CONFIG").Errorf("password hasher is required")
	}
	return &Directory{accounts: accounts, hasher: hasher, now: time.Now}, nil
}

// FindByUsername returns the account with the trimmed username.
func (d *Directory) FindByUsername(ctx context.Context, username string) (*Account, error) {
	username = NormalizeUsername(username)
	account, err := d.accounts.GetByUsername(ctx, username)
	if err != nil {
		return nil, lookupError(err, "username", username)
	}
	return account, nil
}

// Get returns the account with the given ID.
func (d *Directory) Get(ctx context.Context, id ulid.ULID) (*Account, error) {
	account, err := d.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "account_id", id.String())
	}
	return account, nil
}

// Create registers a new account. The username is trimmed; the password
// is stored only as a hash. A username already present, whether seen by
// the pre-check or by the store's uniqueness constraint, yields
// ErrUsernameTaken.
func (d *Directory) Create(ctx context.Context, username, password string, attrs Attributes) (*Account, error) {
	username = NormalizeUsername(username)
	if err := ValidateCredentials(username, password); err != nil {
		return nil, err
	}
	if err := ValidateAttributes(attrs); err != nil {
		return nil, err
	}

	_, err := d.accounts.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return nil, usernameTaken(username)
	case !errors.Is(err, ErrNotFound):
		return nil, oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "check username").
			With("username", username).
			Wrap(err)
	}

	hash, err := d.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	if attrs == nil {
		attrs = Attributes{}
	}
	account := &Account{
		ID:           ulid.Make(),
		Username:     username,
		PasswordHash: hash,
		Attributes:   attrs,
		CreatedAt:    d.now().UTC(),
	}

	if err := d.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, usernameTaken(username)
		}
		return nil, oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("username", username).
			Wrap(err)
	}
	return account, nil
}

func usernameTaken(username string) error {
	return oops.Code("AUTH_USERNAME_TAKEN").With("username", username).Wrap(ErrUsernameTaken)
}

func lookupError(err error, key, value string) error {
	if errors.Is(err, ErrNotFound) {
		return oops.Code("ACCOUNT_NOT_FOUND").With(key, value).Wrap(err)
	}
	return oops.Code("ACCOUNT_LOOKUP_FAILED").With(key, value).Wrap(err)
}
