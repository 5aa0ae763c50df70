package storage

import (
	"context"
	"errors"
	"fmt"

	"hububba-utils/internal/config"

	"go.uber.org/zap"
)

var ErrNotFound = errors.New("order not found")

// OrderStore persists orders. Create assigns the ID; IDs are unique and never
// reused within a store.
type OrderStore interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context) ([]Order, error)
	Update(ctx context.Context, order Order) error
	FindByChannel(ctx context.Context, channelID string) (Order, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the store selected by cfg.Driver, wrapped with metrics.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (OrderStore, error) {
	var (
		store OrderStore
		err   error
	)
	switch cfg.Driver {
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, errors.New("storage: postgres driver needs postgres_dsn")
		}
		store, err = NewPostgresStore(ctx, cfg.PostgresDSN)
	case "mongo":
		if cfg.MongoURI == "" {
			return nil, errors.New("storage: mongo driver needs mongo_uri")
		}
		store, err = NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		store, err = NewJSONStore(cfg.DataDir)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	logger.Info("order store ready", zap.String("driver", driverName(cfg.Driver)))
	return Instrument(store, driverName(cfg.Driver)), nil
}

func driverName(driver string) string {
	if driver == "" {
		return "json"
	}
	return driver
}
