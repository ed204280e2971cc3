package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/certmint/certmint-api/config"
	"github.com/certmint/certmint-api/internal/bootstrap"
)

// issuanceInfra bundles everything an issuance run needs, with a single
// Close that tears it all down.
type issuanceInfra struct {
	DB          *sql.DB
	RedisClient redis.UniversalClient
	CacheClient redis.UniversalClient
	Ledger      *bootstrap.LedgerAdapters
	Services    *bootstrap.ServiceContainer

	logger *slog.Logger
}

// connectIssuanceInfra wires the full dependency set for an issuance run:
// Postgres, the notification queue Redis, the lock cache Redis, the ledger
// RPC client, the renderer, and the pinning provider.
func connectIssuanceInfra(ctx *commandContext, background bool) (*issuanceInfra, error) {
	cfg := &ctx.Config
	logger := ctx.Logger

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	infra := &issuanceInfra{DB: db, logger: logger}

	if cfg.Postgres.RunMigrationsOnStart {
		if err = bootstrap.RunMigrations(ctx.Ctx, db, logger); err != nil {
			return nil, errors.Join(err, infra.Close())
		}
	}

	infra.RedisClient, err = bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: cfg.Redis, Logger: logger})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("connect redis: %w", err), infra.Close())
	}

	infra.CacheClient, err = bootstrap.ConnectCacheRedis(ctx.Ctx, cfg.Cache)
	if err != nil {
		return nil, errors.Join(err, infra.Close())
	}

	infra.Ledger, err = bootstrap.ConnectLedger(cfg.Chain, logger)
	if err != nil {
		return nil, errors.Join(err, infra.Close())
	}

	generator, err := bootstrap.BuildArtifactGenerator(cfg.Renderer)
	if err != nil {
		return nil, errors.Join(err, infra.Close())
	}

	store, err := bootstrap.BuildContentStore(cfg.Pinning, logger)
	if err != nil {
		return nil, errors.Join(err, infra.Close())
	}

	infra.Services = bootstrap.BuildServices(bootstrap.ServiceDeps{
		Config:      cfg,
		DB:          db,
		RedisClient: infra.RedisClient,
		CacheClient: infra.CacheClient,
		Ledger:      infra.Ledger,
		Generator:   generator,
		Store:       store,
		Logger:      logger,
		Background:  background,
	})

	return infra, nil
}

// Close releases whatever was connected, joining errors.
func (i *issuanceInfra) Close() error {
	var closeErr error
	if i.Ledger != nil && i.Ledger.Client != nil {
		i.Ledger.Client.Close()
	}
	if i.CacheClient != nil {
		if err := i.CacheClient.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close cache redis: %w", err))
		}
	}
	if i.RedisClient != nil {
		if err := i.RedisClient.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close redis: %w", err))
		}
	}
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close db: %w", err))
		}
	}
	return closeErr
}

// connectDB connects Postgres only, for read and migration commands.
func connectDB(cfg *config.AppConfig, logger *slog.Logger) (*sql.DB, error) {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	return db, nil
}

func closeDB(db *sql.DB, logger *slog.Logger) {
	if err := db.Close(); err != nil && logger != nil {
		logger.Error("close db failed", "error", err)
	}
}

func runMigrations(ctx *commandContext, _ []string) error {
	db, err := connectDB(&ctx.Config, ctx.Logger)
	if err != nil {
		return err
	}
	defer closeDB(db, ctx.Logger)

	migrateCtx, cancel := context.WithTimeout(ctx.Ctx, defaultMigrationTimeout)
	defer cancel()

	return bootstrap.RunMigrations(migrateCtx, db, ctx.Logger)
}
