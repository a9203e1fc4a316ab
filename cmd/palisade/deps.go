// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/palisade/palisade/internal/audit"
	"github.com/palisade/palisade/internal/config"
	"github.com/palisade/palisade/internal/credential"
	credpg "github.com/palisade/palisade/internal/credential/postgres"
	"github.com/palisade/palisade/internal/store"
	"github.com/palisade/palisade/pkg/errutil"
)

// cliOrigin is the origin key recorded for operations performed through
// the CLI rather than a network front end.
const cliOrigin = "cli"

// runtime bundles the wired collaborators a database-backed subcommand
// needs, plus a cleanup that flushes the audit recorder and closes the
// pool.
type runtime struct {
	service  *credential.Service
	recorder *audit.Recorder
	pool     *pgxpool.Pool
	close    func()
}

// buildRuntime connects to the database and assembles the credential
// service with all of its collaborators. Stranded audit WAL entries are
// replayed best-effort before any new work is recorded.
func buildRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	if err := requireDatabaseURL(cfg); err != nil {
		return nil, err
	}

	pool, err := store.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	auditStore := audit.NewPostgresStore(pool)
	recorder := audit.NewRecorder(auditStore, cfg.Audit.WALPath)
	if err := recorder.ReplayWAL(ctx); err != nil {
		errutil.LogError(slog.Default(), "audit WAL replay failed, entries remain stranded", err)
	}

	cleanup := func() {
		if closeErr := recorder.Close(); closeErr != nil {
			errutil.LogError(slog.Default(), "failed to close audit recorder", closeErr)
		}
		pool.Close()
	}

	accounts := credpg.NewAccountRepository(pool)
	codec := credential.NewStandardCodec()

	twofactor, err := credential.NewTwoFactorManager(accounts, codec, cfg.TOTP.Issuer, nil)
	if err != nil {
		cleanup()
		return nil, err
	}

	resets, err := credential.NewResetFlow(accounts, codec, recorder, credential.ResetConfig{
		TokenBytes:  cfg.Reset.TokenBytes,
		TokenExpiry: cfg.Reset.TokenExpiry,
	}, nil)
	if err != nil {
		cleanup()
		return nil, err
	}

	service, err := credential.NewService(credential.Deps{
		Accounts: accounts,
		Codec:    codec,
		Limiter: credential.NewRateLimiter(credential.RateLimiterConfig{
			Window:      cfg.RateLimit.Window,
			MaxAttempts: cfg.RateLimit.MaxAttempts,
		}, nil),
		Lockout: credential.NewLockoutPolicy(credential.LockoutConfig{
			Threshold:        cfg.Lockout.Threshold,
			BaseLockDuration: cfg.Lockout.BaseDuration,
			MaxShift:         cfg.Lockout.MaxShift,
		}, nil),
		TwoFactor:  twofactor,
		Resets:     resets,
		Sink:       recorder,
		AuditStore: auditStore,
	})
	if err != nil {
		cleanup()
		return nil, oops.Code("SERVICE_INIT_FAILED").Wrap(err)
	}

	return &runtime{service: service, recorder: recorder, pool: pool, close: cleanup}, nil
}
