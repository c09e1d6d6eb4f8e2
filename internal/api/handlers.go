// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

package api

import (
	"maps"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/dungeondash/dungeondash/internal/auth"
	"github.com/dungeondash/dungeondash/internal/roster"
)

type signupRequest struct {
	Username   string          `json:"username"`
	Password   string          `json:"password"`
	Character  string          `json:"character,omitempty"`
	Attributes auth.Attributes `json:"attributes,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

type sessionView struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type rosterResponse struct {
	Characters []roster.Character `json:"characters"`
}

func (h *Handler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid request body", CodeInvalidRequest)
		return
	}

	attrs := make(auth.Attributes, len(req.Attributes)+3)
	maps.Copy(attrs, req.Attributes)
	if req.Character != "" {
		// the loadout always wins over caller-supplied keys
		maps.Copy(attrs, h.roster.Loadout(req.Character))
	}

	result, err := h.service.Signup(c.Request.Context(), req.Username, req.Password, attrs)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sessionResponse{UserID: result.AccountID.String(), Token: result.Token})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid request body", CodeInvalidRequest)
		return
	}

	result, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionResponse{UserID: result.AccountID.String(), Token: result.Token})
}

func (h *Handler) profile(c *gin.Context) {
	id, err := ulid.Parse(c.Param("id"))
	if err != nil {
		abort(c, http.StatusBadRequest, "invalid account id", CodeInvalidAccountID)
		return
	}

	profile, err := h.service.GetPublicProfile(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (h *Handler) currentSession(c *gin.Context) {
	c.JSON(http.StatusOK, currentAccount(c))
}

func (h *Handler) listSessions(c *gin.Context) {
	account := currentAccount(c)

	sessions, err := h.service.ListSessions(c.Request.Context(), account.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	views := make([]sessionView, len(sessions))
	for i, s := range sessions {
		views[i] = sessionView{ID: s.ID.String(), CreatedAt: s.CreatedAt}
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) listRoster(c *gin.Context) {
	c.JSON(http.StatusOK, rosterResponse{Characters: h.roster.Characters})
}
