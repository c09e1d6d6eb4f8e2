// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

//go:build integration

package integration

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/dungeondash/dungeondash/internal/auth"
)

type tokenBody struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

type profileBody struct {
	ID         string         `json:"id"`
	Username   string         `json:"username"`
	Attributes map[string]any `json:"attributes"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var _ = Describe("Account and session flow", Ordered, func() {
	var env *testEnv

	BeforeAll(func() {
		gin.SetMode(gin.TestMode)
		var err error
		env, err = setupTestEnv()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if env != nil {
			env.cleanup()
		}
	})

	flow := func(name string, sessions func() auth.SessionRepository) {
		Describe(name, func() {
			var router *gin.Engine
			var username string

			BeforeEach(func() {
				var err error
				router, err = env.newRouter(sessions())
				Expect(err).NotTo(HaveOccurred())
				username = "hero_" + ulid.Make().String()[16:]
			})

			It("signs up, logs in, and resolves every issued token", func() {
				var signup tokenBody
				code := do(router, http.MethodPost, "/v1/accounts", "", map[string]any{
					"username":  "  " + username + "  ",
					"password":  "hunter22",
					"character": "Vex",
				}, &signup)
				Expect(code).To(Equal(http.StatusCreated))
				Expect(signup.Token).NotTo(BeEmpty())

				var login tokenBody
				code = do(router, http.MethodPost, "/v1/sessions", "", map[string]any{
					"username": username,
					"password": "hunter22",
				}, &login)
				Expect(code).To(Equal(http.StatusOK))
				Expect(login.UserID).To(Equal(signup.UserID))
				Expect(login.Token).NotTo(Equal(signup.Token))

				for _, token := range []string{signup.Token, login.Token} {
					var me profileBody
					Expect(do(router, http.MethodGet, "/v1/session", token, nil, &me)).To(Equal(http.StatusOK))
					Expect(me.ID).To(Equal(signup.UserID))
					Expect(me.Username).To(Equal(username))
				}

				var list []map[string]any
				Expect(do(router, http.MethodGet, "/v1/session/list", login.Token, nil, &list)).To(Equal(http.StatusOK))
				Expect(list).To(HaveLen(2))

				var profile profileBody
				Expect(do(router, http.MethodGet, "/v1/accounts/"+signup.UserID, "", nil, &profile)).To(Equal(http.StatusOK))
				Expect(profile.Attributes).To(HaveKeyWithValue("character", "Vex"))
				Expect(profile.Attributes).To(HaveKeyWithValue("class", "Vex"))
				Expect(profile.Attributes).To(HaveKeyWithValue("weapons", ConsistOf("Mystical Staff", "Ancient Tome")))
			})

			It("rejects bad credentials without revealing which part was wrong", func() {
				Expect(do(router, http.MethodPost, "/v1/accounts", "", map[string]any{
					"username": username, "password": "hunter22",
				}, nil)).To(Equal(http.StatusCreated))

				var unknown, wrong errorBody
				Expect(do(router, http.MethodPost, "/v1/sessions", "", map[string]any{
					"username": username + "x", "password": "hunter22",
				}, &unknown)).To(Equal(http.StatusUnauthorized))
				Expect(do(router, http.MethodPost, "/v1/sessions", "", map[string]any{
					"username": username, "password": "wrongpass",
				}, &wrong)).To(Equal(http.StatusUnauthorized))
				Expect(unknown).To(Equal(wrong))
			})

			It("rejects an unknown token", func() {
				Expect(do(router, http.MethodGet, "/v1/session", "nosuchtoken", nil, nil)).
					To(Equal(http.StatusUnauthorized))
			})

			It("lets exactly one concurrent signup claim a username", func() {
				const racers = 6
				var wg sync.WaitGroup
				codes := make(chan int, racers)
				for range racers {
					wg.Add(1)
					go func() {
						defer GinkgoRecover()
						defer wg.Done()
						codes <- do(router, http.MethodPost, "/v1/accounts", "", map[string]any{
							"username": username, "password": "hunter22",
						}, nil)
					}()
				}
				wg.Wait()
				close(codes)

				created, conflicts := 0, 0
				for code := range codes {
					switch code {
					case http.StatusCreated:
						created++
					case http.StatusConflict:
						conflicts++
					}
				}
				Expect(created).To(Equal(1))
				Expect(conflicts).To(Equal(racers - 1))
			})
		})
	}

	flow("with postgres sessions", func() auth.SessionRepository {
		return env.postgresSessions()
	})
	flow("with redis sessions", func() auth.SessionRepository {
		return env.redisSessions("it:" + ulid.Make().String() + ":")
	})
})
