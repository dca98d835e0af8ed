package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/ireland-samantha/shopkeeper-bot/internal/backend/dynamo"
	"github.com/ireland-samantha/shopkeeper-bot/internal/backend/seed"
	"github.com/ireland-samantha/shopkeeper-bot/internal/backend/sqlite"
	"github.com/ireland-samantha/shopkeeper-bot/internal/config"
)

// Seeder accepts catalog documents.
type Seeder interface {
	Apply(ctx context.Context, f seed.File) error
}

// Opened is a constructed backend plus its release function.
type Opened struct {
	Backend Backend
	Close   func() error
}

// Open builds the backend selected by cfg and applies cfg.SeedGlob to it. ddb
// is only used by the dynamodb backend and may be nil otherwise.
func Open(ctx context.Context, cfg *config.Config, ddb *dynamodb.Client, logger *slog.Logger) (*Opened, error) {
	var opened *Opened

	switch cfg.Backend {
	case config.BackendSQLite:
		b, err := sqlite.Open(cfg.SQLitePath, sqlite.WithLocation(cfg.Location()))
		if err != nil {
			return nil, err
		}
		opened = &Opened{Backend: b, Close: b.Close}
	case config.BackendDynamoDB:
		if ddb == nil {
			return nil, errors.New("backend: dynamodb client is required")
		}
		b, err := dynamo.New(ddb, cfg.DynamoDBTable, cfg.Location())
		if err != nil {
			return nil, err
		}
		opened = &Opened{Backend: b, Close: func() error { return nil }}
	default:
		return nil, fmt.Errorf("backend: unknown backend %q", cfg.Backend)
	}

	if err := Seed(ctx, opened.Backend, cfg.SeedGlob, logger); err != nil {
		opened.Close()
		return nil, err
	}
	return opened, nil
}

// Seed loads every file matching pattern into b when b accepts seeds.
func Seed(ctx context.Context, b Backend, pattern string, logger *slog.Logger) error {
	seeder, ok := b.(Seeder)
	if !ok || pattern == "" {
		return nil
	}
	files, err := seed.Load(pattern)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := seeder.Apply(ctx, f); err != nil {
			return fmt.Errorf("backend: applying seed %s: %w", f.Path, err)
		}
		logger.Info("Applied seed file", "path", f.Path, "stock", len(f.Stock), "stores", len(f.Stores))
	}
	return nil
}
