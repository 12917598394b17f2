// Package backend opens the configured storage.Store implementation.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmphub-lab/dmphub/internal/config"
	"github.com/dmphub-lab/dmphub/internal/core/storage"
	"github.com/dmphub-lab/dmphub/internal/core/storage/dynamodb"
	"github.com/dmphub-lab/dmphub/internal/core/storage/memory"
	"github.com/dmphub-lab/dmphub/internal/core/storage/postgres"
	"github.com/dmphub-lab/dmphub/internal/migrations"
)

// Backend is an opened store. Postgres is set only for the postgres
// backend, which also provides the change-event outbox.
type Backend struct {
	Store    storage.Store
	Postgres *postgres.Adapter
}

// Open connects to cfg.Backend. For postgres, pending migrations are applied
// when cfg.AutoMigrate is set.
func Open(ctx context.Context, cfg config.StorageConfig) (*Backend, error) {
	switch cfg.Backend {
	case "memory":
		slog.Warn("[Storage] Using in-memory storage; data is lost on restart")
		return &Backend{Store: memory.NewStore()}, nil

	case "postgres":
		db, err := postgres.Connect(cfg.DSN, cfg.MaxOpenConns, cfg.MaxIdleConns)
		if err != nil {
			return nil, err
		}
		if err := migrations.RunMigrations(db, cfg.AutoMigrate); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		adapter, err := postgres.NewAdapterWithDB(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &Backend{Store: adapter, Postgres: adapter}, nil

	case "dynamodb":
		store, err := dynamodb.New(ctx, dynamodb.Config{
			Table:           cfg.DynamoDB.Table,
			Region:          cfg.DynamoDB.Region,
			Endpoint:        cfg.DynamoDB.Endpoint,
			AccessKeyID:     cfg.DynamoDB.AccessKeyID,
			SecretAccessKey: cfg.DynamoDB.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return &Backend{Store: store}, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

// Outbox returns the durable change-event outbox, or nil when the backend
// has none.
func (b *Backend) Outbox() storage.Outbox {
	if b.Postgres == nil {
		return nil
	}
	return postgres.NewOutboxAdapter(b.Postgres.DB())
}

// Ping checks connectivity. Backends without a connection are always healthy.
func (b *Backend) Ping(ctx context.Context) error {
	if b.Postgres == nil {
		return nil
	}
	return b.Postgres.Ping(ctx)
}

func (b *Backend) Close() error {
	if b.Postgres == nil {
		return nil
	}
	return b.Postgres.Close()
}
