// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

// Package api binds the auth service to HTTP with gin.
package api

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/dungeondash/dungeondash/internal/auth"
	"github.com/dungeondash/dungeondash/internal/observability"
	"github.com/dungeondash/dungeondash/internal/roster"
)

// AuthService is the subset of auth.Service the handlers call.
type AuthService interface {
	Signup(ctx context.Context, username, password string, attrs auth.Attributes) (*auth.Result, error)
	Login(ctx context.Context, username, password string) (*auth.Result, error)
	GetPublicProfile(ctx context.Context, id ulid.ULID) (*auth.PublicAccount, error)
	ResolveSession(ctx context.Context, token string) (*auth.PublicAccount, error)
	ListSessions(ctx context.Context, accountID ulid.ULID) ([]*auth.Session, error)
}

// Options configures the router.
type Options struct {
	Service AuthService
	Roster  *roster.Roster
	// Metrics is optional; nil disables request metrics.
	Metrics *observability.Metrics
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Handler holds the dependencies shared by the HTTP handlers.
type Handler struct {
	service AuthService
	roster  *roster.Roster
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewRouter builds the gin engine serving the /v1 API.
func NewRouter(opts Options) (*gin.Engine, error) {
	if opts.Service == nil {
		return nil, oops.Code("API_INVALID_CONFIG").Errorf("auth service is required")
	}
	if opts.Roster == nil {
		opts.Roster = roster.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	h := &Handler{
		service: opts.Service,
		roster:  opts.Roster,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(h.observe)
	h.RegisterRoutes(router)
	return router, nil
}

// RegisterRoutes mounts the API on r.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/v1")
	v1.POST("/accounts", h.signup)
	v1.GET("/accounts/:id", h.profile)
	v1.POST("/sessions", h.login)
	v1.GET("/roster", h.listRoster)

	session := v1.Group("/session")
	session.Use(h.requireSession)
	session.GET("", h.currentSession)
	session.GET("/list", h.listSessions)
}
