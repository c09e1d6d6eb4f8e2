// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeondash/dungeondash/internal/auth"
	"github.com/dungeondash/dungeondash/pkg/errutil"
)

var sessionColumns = []string{"id", "account_id", "token_hash", "created_at"}

func TestSessionRepository_Create(t *testing.T) {
	session := &auth.Session{
		ID:        ulid.Make(),
		AccountID: ulid.Make(),
		TokenHash: auth.HashToken("abc"),
		CreatedAt: time.Now().UTC(),
	}

	t.Run("successful insert", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO sessions`).
			WithArgs(session.ID.String(), session.AccountID.String(), session.TokenHash, session.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, NewSessionRepository(mock).Create(context.Background(), session))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("token hash collision maps to duplicate", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO sessions`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "sessions_token_hash_key"})

		err = NewSessionRepository(mock).Create(context.Background(), session)
		assert.ErrorIs(t, err, auth.ErrDuplicate)
		errutil.AssertErrorCode(t, err, "SESSION_DUPLICATE")
	})

	t.Run("foreign key violation is not a duplicate", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO sessions`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation})

		err = NewSessionRepository(mock).Create(context.Background(), session)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrDuplicate)
		errutil.AssertErrorCode(t, err, "SESSION_CREATE_FAILED")
	})
}

func TestSessionRepository_GetByTokenHash(t *testing.T) {
	id, accountID := ulid.Make(), ulid.Make()
	hash := auth.HashToken("token")

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		created := time.Now().UTC()
		mock.ExpectQuery(`FROM sessions\s+WHERE token_hash = \$1`).
			WithArgs(hash).
			WillReturnRows(pgxmock.NewRows(sessionColumns).AddRow(id.String(), accountID.String(), hash, created))

		session, err := NewSessionRepository(mock).GetByTokenHash(context.Background(), hash)
		require.NoError(t, err)
		assert.Equal(t, id, session.ID)
		assert.Equal(t, accountID, session.AccountID)
		assert.Equal(t, hash, session.TokenHash)
		assert.Equal(t, created, session.CreatedAt)
	})

	t.Run("missing maps to not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM sessions\s+WHERE token_hash = \$1`).
			WithArgs(hash).
			WillReturnError(pgx.ErrNoRows)

		_, err = NewSessionRepository(mock).GetByTokenHash(context.Background(), hash)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "SESSION_NOT_FOUND")
	})
}

func TestSessionRepository_ListByAccount(t *testing.T) {
	accountID := ulid.Make()

	t.Run("returns rows in order", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		first, second := ulid.Make(), ulid.Make()
		now := time.Now().UTC()
		rows := pgxmock.NewRows(sessionColumns).
			AddRow(first.String(), accountID.String(), "h1", now).
			AddRow(second.String(), accountID.String(), "h2", now.Add(time.Second))
		mock.ExpectQuery(`FROM sessions\s+WHERE account_id = \$1`).
			WithArgs(accountID.String()).
			WillReturnRows(rows)

		sessions, err := NewSessionRepository(mock).ListByAccount(context.Background(), accountID)
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		assert.Equal(t, first, sessions[0].ID)
		assert.Equal(t, second, sessions[1].ID)
	})

	t.Run("no sessions", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM sessions\s+WHERE account_id = \$1`).
			WithArgs(accountID.String()).
			WillReturnRows(pgxmock.NewRows(sessionColumns))

		sessions, err := NewSessionRepository(mock).ListByAccount(context.Background(), accountID)
		require.NoError(t, err)
		assert.Empty(t, sessions)
	})

	t.Run("query error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM sessions\s+WHERE account_id = \$1`).
			WithArgs(accountID.String()).
			WillReturnError(errors.New("connection reset"))

		_, err = NewSessionRepository(mock).ListByAccount(context.Background(), accountID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})
}
