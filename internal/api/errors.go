// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dungeondash/dungeondash/internal/auth"
	"github.com/dungeondash/dungeondash/pkg/errutil"
)

// Codes for failures detected by the HTTP layer itself.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInvalidAccountID = "INVALID_ACCOUNT_ID"
	CodeSessionRequired  = "SESSION_REQUIRED"
	CodeInternal         = "INTERNAL"
)

const internalMessage = "internal error"

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Internal faults are logged and reported
// without detail.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		errutil.LogErrorContext(c.Request.Context(), h.logger, "request failed", err,
			"route", c.FullPath(),
		)
		abort(c, status, internalMessage, CodeInternal)
		return
	}
	abort(c, status, err.Error(), errutil.Code(err))
}

func abort(c *gin.Context, status int, msg, code string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg, Code: code})
}
