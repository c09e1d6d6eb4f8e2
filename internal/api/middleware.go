// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dungeondash/dungeondash/internal/auth"
)

const accountKey = "account"

// unmatchedRoute labels requests that hit no route, keeping metric
// cardinality bounded.
const unmatchedRoute = "unmatched"

func (h *Handler) observe(c *gin.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = unmatchedRoute
	}
	status := c.Writer.Status()
	elapsed := time.Since(start)

	h.metrics.ObserveRequest(route, status, elapsed)
	h.logger.DebugContext(c.Request.Context(), "http request",
		"method", c.Request.Method,
		"route", route,
		"status", status,
		"duration", elapsed,
	)
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// requireSession resolves the bearer token and stores the account in
// the gin context. Unknown tokens are 401, not 404.
func (h *Handler) requireSession(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		abort(c, http.StatusUnauthorized, "missing or invalid session", CodeSessionRequired)
		return
	}

	account, err := h.service.ResolveSession(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			abort(c, http.StatusUnauthorized, "missing or invalid session", CodeSessionRequired)
			return
		}
		h.writeError(c, err)
		return
	}

	c.Set(accountKey, account)
	c.Next()
}

func currentAccount(c *gin.Context) *auth.PublicAccount {
	account, _ := c.MustGet(accountKey).(*auth.PublicAccount)
	return account
}
