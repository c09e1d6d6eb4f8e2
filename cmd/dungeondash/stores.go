// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dungeon Dash Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/dungeondash/dungeondash/internal/auth"
	"github.com/dungeondash/dungeondash/internal/auth/memory"
	"github.com/dungeondash/dungeondash/internal/auth/postgres"
	authredis "github.com/dungeondash/dungeondash/internal/auth/redis"
	"github.com/dungeondash/dungeondash/internal/config"
	"github.com/dungeondash/dungeondash/internal/store"
)

const redisPingTimeout = 2 * time.Second

// openStores connects the repositories selected by cfg.Store.
func openStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	var (
		pool   *pgxpool.Pool
		client *goredis.Client
	)
	closeAll := func() {
		if client != nil {
			if err := client.Close(); err != nil {
				slog.Debug("error closing redis client", "error", err)
			}
		}
		if pool != nil {
			pool.Close()
		}
	}

	if cfg.UsesPostgres() {
		var err error
		pool, err = store.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		slog.Info("connected to database")
	}

	if cfg.Store.Sessions == config.BackendRedis {
		client = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			closeAll()
			return nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", cfg.Redis.Addr).Wrap(err)
		}
		slog.Info("connected to redis", "addr", cfg.Redis.Addr)
	}

	stores := &Stores{Close: closeAll}

	switch cfg.Store.Accounts {
	case config.BackendPostgres:
		stores.Accounts = postgres.NewAccountRepository(pool)
	default:
		stores.Accounts = memory.NewAccountStore()
	}

	switch cfg.Store.Sessions {
	case config.BackendPostgres:
		stores.Sessions = postgres.NewSessionRepository(pool)
	case config.BackendRedis:
		stores.Sessions = authredis.NewSessionRepository(client)
	default:
		stores.Sessions = memory.NewSessionStore()
	}

	stores.Ping = func(ctx context.Context) error {
		var errs []error
		if pool != nil {
			errs = append(errs, pool.Ping(ctx))
		}
		if client != nil {
			errs = append(errs, client.Ping(ctx).Err())
		}
		return errors.Join(errs...)
	}

	return stores, nil
}

// Compile-time interface checks.
var (
	_ auth.AccountRepository = (*postgres.AccountRepository)(nil)
	_ auth.SessionRepository = (*authredis.SessionRepository)(nil)
)
