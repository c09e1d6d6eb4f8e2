// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	"github.com/dungeondash/dungeondash/internal/api"
	"github.com/dungeondash/dungeondash/internal/auth"
	authpg "github.com/dungeondash/dungeondash/internal/auth/postgres"
	authredis "github.com/dungeondash/dungeondash/internal/auth/redis"
	"github.com/dungeondash/dungeondash/internal/roster"
	"github.com/dungeondash/dungeondash/internal/store"
)

// testEnv holds the containers and the router under test.
type testEnv struct {
	ctx      context.Context
	cancel   context.CancelFunc
	pg       *postgres.PostgresContainer
	redis    testcontainers.Container
	pool     *pgxpool.Pool
	client   *goredis.Client
	accounts *authpg.AccountRepository
}

func setupTestEnv() (*testEnv, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	env := &testEnv{ctx: ctx, cancel: cancel}

	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("dungeondash_test"),
		postgres.WithUsername("dungeondash"),
		postgres.WithPassword("dungeondash"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		env.cleanup()
		return nil, err
	}
	env.pg = pg

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		env.cleanup()
		return nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		env.cleanup()
		return nil, err
	}
	err = migrator.Up()
	_ = migrator.Close()
	if err != nil {
		env.cleanup()
		return nil, err
	}

	env.pool, err = store.Connect(ctx, store.PoolConfig{URL: connStr, ConnectTimeout: 10 * time.Second})
	if err != nil {
		env.cleanup()
		return nil, err
	}
	env.accounts = authpg.NewAccountRepository(env.pool)

	env.redis, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		env.cleanup()
		return nil, err
	}
	endpoint, err := env.redis.Endpoint(ctx, "")
	if err != nil {
		env.cleanup()
		return nil, err
	}
	env.client = goredis.NewClient(&goredis.Options{Addr: endpoint})

	return env, nil
}

func (e *testEnv) cleanup() {
	if e.client != nil {
		_ = e.client.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
	bg := context.Background()
	if e.redis != nil {
		_ = e.redis.Terminate(bg)
	}
	if e.pg != nil {
		_ = e.pg.Terminate(bg)
	}
	e.cancel()
}

// newRouter wires the API over the postgres account store and the given
// session store.
func (e *testEnv) newRouter(sessions auth.SessionRepository) (*gin.Engine, error) {
	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	dir, err := auth.NewDirectory(e.accounts, hasher)
	if err != nil {
		return nil, err
	}
	mgr, err := auth.NewSessionManager(sessions, e.accounts)
	if err != nil {
		return nil, err
	}
	svc, err := auth.NewService(dir, mgr, hasher)
	if err != nil {
		return nil, err
	}
	return api.NewRouter(api.Options{Service: svc, Roster: roster.Default()})
}

func (e *testEnv) postgresSessions() auth.SessionRepository {
	return authpg.NewSessionRepository(e.pool)
}

func (e *testEnv) redisSessions(prefix string) auth.SessionRepository {
	return authredis.NewSessionRepositoryWithPrefix(e.client, prefix)
}

// do sends a JSON request through the router and decodes the body into out
// when out is non-nil.
func do(router http.Handler, method, path, token string, body, out any) int {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if out != nil {
		_ = json.Unmarshal(rec.Body.Bytes(), out)
	}
	return rec.Code
}
