// Package store selects the core.Store implementation named by config.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/inventory/internal/config"
	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/JonMunkholm/inventory/internal/store/memstore"
	"github.com/JonMunkholm/inventory/internal/store/mongostore"
	"github.com/JonMunkholm/inventory/internal/store/pgstore"
)

// Open connects to the configured backend and verifies it is reachable.
func Open(ctx context.Context, cfg config.StoreConfig) (core.Store, error) {
	switch cfg.Driver {
	case config.StoreMongo:
		s, err := mongostore.Open(ctx, mongostore.Options{
			URI:            cfg.MongoURI,
			Database:       cfg.MongoDatabase,
			MaxPoolSize:    uint64(cfg.MaxConns),
			MinPoolSize:    uint64(cfg.MinConns),
			ConnectTimeout: cfg.ConnectTimeout,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("connected to store", "driver", cfg.Driver, "database", cfg.MongoDatabase)
		return s, nil

	case config.StorePostgres:
		ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
		s, err := pgstore.Open(ctx, pgstore.Options{
			URL:             cfg.PostgresURL,
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("connected to store", "driver", cfg.Driver)
		return s, nil

	case config.StoreMemory:
		slog.Warn("using in-memory store; data is lost on restart")
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
}
