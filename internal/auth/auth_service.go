// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dungeondash/dungeondash/pkg/errutil"
)

var tracer = otel.Tracer("github.com/dungeondash/dungeondash/internal/auth")

// Result is returned by Signup and Login.
type Result struct {
	AccountID ulid.ULID
	Token     string
}

// Service is the caller-facing entry point for signup, login and session
// resolution.
type Service struct {
	directory *Directory
	sessions  *SessionManager
	hasher    PasswordHasher
	logger    *slog.Logger

	// dummyHash is verified when the username is unknown, so a miss costs
	// the same as a wrong password.
	dummyHash string
}

// NewService creates a Service that logs to slog.Default().
func NewService(directory *Directory, sessions *SessionManager, hasher PasswordHasher) (*Service, error) {
	return NewServiceWithLogger(directory, sessions, hasher, slog.Default())
}

// NewServiceWithLogger creates a Service with an explicit logger.
func NewServiceWithLogger(directory *Directory, sessions *SessionManager, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if directory == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("directory is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("session manager is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	seed, err := NewRandomTokenGenerator().Generate(DefaultTokenLength)
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").With("operation", "seed dummy hash").Wrap(err)
	}
	dummy, err := hasher.Hash(seed)
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").With("operation", "compute dummy hash").Wrap(err)
	}

	return &Service{
		directory: directory,
		sessions:  sessions,
		hasher:    hasher,
		logger:    logger,
		dummyHash: dummy,
	}, nil
}

// Signup creates an account and opens its first session.
func (s *Service) Signup(ctx context.Context, username, password string, attrs Attributes) (result *Result, err error) {
	ctx, span := s.start(ctx, OpSignup)
	defer func(start time.Time) { s.finish(ctx, span, OpSignup, start, err) }(time.Now())

	username = NormalizeUsername(username)
	if err := ValidateCredentials(username, password); err != nil {
		return nil, err
	}

	account, err := s.directory.Create(ctx, username, password, attrs)
	if err != nil {
		return nil, err
	}

	_, token, err := s.sessions.CreateSession(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "account created",
		"account_id", account.ID.String(),
		"username", account.Username)
	return &Result{AccountID: account.ID, Token: token}, nil
}

// Login verifies credentials and opens a new session. Unknown usernames and
// wrong passwords return the same ErrInvalidCredentials error.
func (s *Service) Login(ctx context.Context, username, password string) (result *Result, err error) {
	ctx, span := s.start(ctx, OpLogin)
	defer func(start time.Time) { s.finish(ctx, span, OpLogin, start, err) }(time.Now())

	username = NormalizeUsername(username)

	account, lookupErr := s.directory.FindByUsername(ctx, username)
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return nil, lookupErr
	}

	targetHash := s.dummyHash
	if account != nil {
		targetHash = account.PasswordHash
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if account == nil || (verifyErr == nil && !valid) {
		return nil, invalidCredentials()
	}
	if verifyErr != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("account_id", account.ID.String()).
			Wrap(verifyErr)
	}

	_, token, err := s.sessions.CreateSession(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "session issued", "account_id", account.ID.String())
	return &Result{AccountID: account.ID, Token: token}, nil
}

// GetPublicProfile returns the account without its password hash.
func (s *Service) GetPublicProfile(ctx context.Context, id ulid.ULID) (profile *PublicAccount, err error) {
	ctx, span := s.start(ctx, OpProfile)
	defer func(start time.Time) { s.finish(ctx, span, OpProfile, start, err) }(time.Now())

	account, err := s.directory.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return account.Public(), nil
}

// ResolveSession returns the public profile of the account owning token.
func (s *Service) ResolveSession(ctx context.Context, token string) (profile *PublicAccount, err error) {
	ctx, span := s.start(ctx, OpResolve)
	defer func(start time.Time) { s.finish(ctx, span, OpResolve, start, err) }(time.Now())

	account, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return account.Public(), nil
}

// ListSessions returns the sessions owned by accountID.
func (s *Service) ListSessions(ctx context.Context, accountID ulid.ULID) ([]*Session, error) {
	return s.sessions.ListSessions(ctx, accountID)
}

func invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
}

func (s *Service) start(ctx context.Context, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "auth."+op, trace.WithAttributes(attribute.String("auth.operation", op)))
}

func (s *Service) finish(ctx context.Context, span trace.Span, op string, start time.Time, err error) {
	defer span.End()
	recordOperation(op, start, err)

	outcome := Outcome(err)
	span.SetAttributes(attribute.String("auth.outcome", outcome))
	if outcome == OutcomeError {
		span.RecordError(err)
		span.SetStatus(codes.Error, "auth operation failed")
		errutil.LogErrorContext(ctx, s.logger, "auth operation failed", err, "operation", op)
	}
}
