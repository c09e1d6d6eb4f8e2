// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/crypto/bcrypt"

	"github.com/dungeondash/dungeondash/internal/api"
	"github.com/dungeondash/dungeondash/internal/auth"
	"github.com/dungeondash/dungeondash/internal/auth/memory"
	"github.com/dungeondash/dungeondash/internal/observability"
	"github.com/dungeondash/dungeondash/internal/roster"
)

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type tokenBody struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

func do(router *gin.Engine, method, path string, body any, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](rec *httptest.ResponseRecorder) T {
	var out T
	Expect(json.Unmarshal(rec.Body.Bytes(), &out)).To(Succeed(), rec.Body.String())
	return out
}

// failingService returns the same error from every call.
type failingService struct{ err error }

func (f failingService) Signup(context.Context, string, string, auth.Attributes) (*auth.Result, error) {
	return nil, f.err
}

func (f failingService) Login(context.Context, string, string) (*auth.Result, error) {
	return nil, f.err
}

func (f failingService) GetPublicProfile(context.Context, ulid.ULID) (*auth.PublicAccount, error) {
	return nil, f.err
}

func (f failingService) ResolveSession(context.Context, string) (*auth.PublicAccount, error) {
	return nil, f.err
}

func (f failingService) ListSessions(context.Context, ulid.ULID) ([]*auth.Session, error) {
	return nil, f.err
}

var _ = Describe("API", func() {
	var (
		router  *gin.Engine
		metrics *observability.Metrics
		logs    *bytes.Buffer
	)

	BeforeEach(func() {
		hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())
		accounts := memory.NewAccountStore()
		dir, err := auth.NewDirectory(accounts, hasher)
		Expect(err).NotTo(HaveOccurred())
		mgr, err := auth.NewSessionManager(memory.NewSessionStore(), accounts)
		Expect(err).NotTo(HaveOccurred())
		svc, err := auth.NewService(dir, mgr, hasher)
		Expect(err).NotTo(HaveOccurred())

		logs = &bytes.Buffer{}
		metrics = observability.NewMetrics(prometheus.NewRegistry())
		router, err = api.NewRouter(api.Options{
			Service: svc,
			Roster:  roster.Default(),
			Metrics: metrics,
			Logger:  slog.New(slog.NewJSONHandler(logs, nil)),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	signup := func(username, password, character string) tokenBody {
		rec := do(router, http.MethodPost, "/v1/accounts", map[string]any{
			"username":  username,
			"password":  password,
			"character": character,
		}, "")
		Expect(rec.Code).To(Equal(http.StatusCreated), rec.Body.String())
		return decode[tokenBody](rec)
	}

	Describe("POST /v1/accounts", func() {
		It("creates the account with the character loadout", func() {
			created := signup("hero1", "hunter22", "Korrath")
			Expect(created.Token).To(HaveLen(auth.DefaultTokenLength))

			rec := do(router, http.MethodGet, "/v1/accounts/"+created.UserID, nil, "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			profile := decode[map[string]any](rec)
			Expect(profile["username"]).To(Equal("hero1"))
			Expect(profile).NotTo(HaveKey("password_hash"))
			Expect(profile["attributes"]).To(HaveKeyWithValue("character", "Korrath"))
			Expect(profile["attributes"]).To(HaveKeyWithValue("class", "Korrath"))
			Expect(profile["attributes"]).To(HaveKeyWithValue("weapons", ConsistOf("War Hammer", "Shield")))
		})

		It("accepts an unknown character with no weapons", func() {
			created := signup("hero1", "hunter22", "Nobody")

			rec := do(router, http.MethodGet, "/v1/accounts/"+created.UserID, nil, "")
			profile := decode[map[string]any](rec)
			Expect(profile["attributes"]).To(HaveKeyWithValue("class", "Nobody"))
			Expect(profile["attributes"]).To(HaveKeyWithValue("weapons", BeEmpty()))
		})

		It("does not let attributes override the loadout", func() {
			rec := do(router, http.MethodPost, "/v1/accounts", map[string]any{
				"username":   "hero1",
				"password":   "hunter22",
				"character":  "Vex",
				"attributes": map[string]any{"weapons": []string{"Excalibur"}, "title": "Sir"},
			}, "")
			Expect(rec.Code).To(Equal(http.StatusCreated))
			created := decode[tokenBody](rec)

			profile := decode[map[string]any](do(router, http.MethodGet, "/v1/accounts/"+created.UserID, nil, ""))
			Expect(profile["attributes"]).To(HaveKeyWithValue("weapons", ConsistOf("Mystical Staff", "Ancient Tome")))
			Expect(profile["attributes"]).To(HaveKeyWithValue("title", "Sir"))
		})

		It("reports validation errors as 400", func() {
			rec := do(router, http.MethodPost, "/v1/accounts", map[string]any{
				"username": "ab", "password": "hunter22",
			}, "")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			body := decode[apiError](rec)
			Expect(body.Error).To(Equal("username must be at least 3 characters"))
			Expect(body.Code).To(Equal("AUTH_INVALID_USERNAME"))
		})

		It("reports a taken username as 409", func() {
			signup("hero1", "hunter22", "Zephyr")

			rec := do(router, http.MethodPost, "/v1/accounts", map[string]any{
				"username": " hero1 ", "password": "different",
			}, "")
			Expect(rec.Code).To(Equal(http.StatusConflict))
			body := decode[apiError](rec)
			Expect(body.Error).To(Equal("username already taken"))
			Expect(body.Code).To(Equal("AUTH_USERNAME_TAKEN"))
		})

		It("rejects malformed JSON", func() {
			rec := do(router, http.MethodPost, "/v1/accounts", "{not json", "")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(decode[apiError](rec).Code).To(Equal(api.CodeInvalidRequest))
		})
	})

	Describe("POST /v1/sessions", func() {
		BeforeEach(func() {
			signup("hero1", "hunter22", "Thane")
		})

		It("issues a fresh token", func() {
			rec := do(router, http.MethodPost, "/v1/sessions", map[string]any{
				"username": "hero1", "password": "hunter22",
			}, "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decode[tokenBody](rec).Token).To(HaveLen(auth.DefaultTokenLength))
		})

		It("answers unknown users and wrong passwords identically", func() {
			wrong := do(router, http.MethodPost, "/v1/sessions", map[string]any{
				"username": "hero1", "password": "wrongpass",
			}, "")
			unknown := do(router, http.MethodPost, "/v1/sessions", map[string]any{
				"username": "nobody", "password": "hunter22",
			}, "")

			Expect(wrong.Code).To(Equal(http.StatusUnauthorized))
			Expect(unknown.Code).To(Equal(http.StatusUnauthorized))
			Expect(wrong.Body.String()).To(Equal(unknown.Body.String()))
			Expect(decode[apiError](wrong).Error).To(Equal("invalid username or password"))
		})
	})

	Describe("GET /v1/accounts/:id", func() {
		It("rejects a malformed id", func() {
			rec := do(router, http.MethodGet, "/v1/accounts/not-a-ulid", nil, "")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(decode[apiError](rec).Code).To(Equal(api.CodeInvalidAccountID))
		})

		It("returns 404 for an unknown account", func() {
			rec := do(router, http.MethodGet, "/v1/accounts/"+ulid.Make().String(), nil, "")
			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(decode[apiError](rec).Code).To(Equal("ACCOUNT_NOT_FOUND"))
		})
	})

	Describe("session routes", func() {
		It("resolves the bearer token to the account", func() {
			created := signup("hero1", "hunter22", "Zephyr")

			rec := do(router, http.MethodGet, "/v1/session", nil, created.Token)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(decode[map[string]any](rec)["id"]).To(Equal(created.UserID))
		})

		It("lists every session of the caller", func() {
			created := signup("hero1", "hunter22", "Zephyr")
			do(router, http.MethodPost, "/v1/sessions", map[string]any{"username": "hero1", "password": "hunter22"}, "")

			rec := do(router, http.MethodGet, "/v1/session/list", nil, created.Token)
			Expect(rec.Code).To(Equal(http.StatusOK))
			sessions := decode[[]map[string]any](rec)
			Expect(sessions).To(HaveLen(2))
			Expect(sessions[0]).To(HaveKey("id"))
			Expect(sessions[0]).To(HaveKey("created_at"))
			Expect(rec.Body.String()).NotTo(ContainSubstring(created.Token))
		})

		DescribeTable("rejects missing or unknown tokens with 401",
			func(header string) {
				req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
				if header != "" {
					req.Header.Set("Authorization", header)
				}
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, req)
				Expect(rec.Code).To(Equal(http.StatusUnauthorized))
				Expect(decode[apiError](rec).Code).To(Equal(api.CodeSessionRequired))
			},
			Entry("no header", ""),
			Entry("wrong scheme", "Basic abc"),
			Entry("empty token", "Bearer "),
			Entry("unknown token", "Bearer ZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZZ"),
		)
	})

	Describe("GET /v1/roster", func() {
		It("lists the playable characters", func() {
			rec := do(router, http.MethodGet, "/v1/roster", nil, "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			body := decode[struct {
				Characters []roster.Character `json:"characters"`
			}](rec)
			Expect(body.Characters).To(HaveLen(4))
			Expect(body.Characters[0].Name).To(Equal("Zephyr"))
		})
	})

	Describe("metrics", func() {
		It("counts requests by route template and status", func() {
			do(router, http.MethodGet, "/v1/accounts/"+ulid.Make().String(), nil, "")
			do(router, http.MethodGet, "/v1/nowhere", nil, "")

			Expect(testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("/v1/accounts/:id", "404"))).To(Equal(1.0))
			Expect(testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("unmatched", "404"))).To(Equal(1.0))
		})
	})

	Describe("internal faults", func() {
		BeforeEach(func() {
			var err error
			router, err = api.NewRouter(api.Options{
				Service: failingService{err: errors.New("connection reset by peer")},
				Logger:  slog.New(slog.NewJSONHandler(logs, nil)),
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("hides details from the client and logs them", func() {
			rec := do(router, http.MethodPost, "/v1/sessions", map[string]any{
				"username": "hero1", "password": "hunter22",
			}, "")
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
			body := decode[apiError](rec)
			Expect(body.Error).To(Equal("internal error"))
			Expect(body.Code).To(Equal(api.CodeInternal))
			Expect(rec.Body.String()).NotTo(ContainSubstring("connection reset"))
			Expect(logs.String()).To(ContainSubstring("connection reset by peer"))
		})

		It("reports a failing session lookup as 500, not 401", func() {
			rec := do(router, http.MethodGet, "/v1/session", nil, "sometoken")
			Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		})
	})

	It("requires a service", func() {
		_, err := api.NewRouter(api.Options{})
		Expect(err).To(HaveOccurred())
	})
})
