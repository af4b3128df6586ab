// Package application assembles the inventory service from configuration.
// Both the HTTP server and the command line tool start from Build.
package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/inventory/internal/archive"
	"github.com/JonMunkholm/inventory/internal/auth"
	"github.com/JonMunkholm/inventory/internal/config"
	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/JonMunkholm/inventory/internal/store"
)

// App holds the wired components and the resources to release on Close.
type App struct {
	Config   *config.Config
	Store    core.Store
	Service  *core.Service
	Provider *auth.LocalProvider
	Gate     *auth.Gate

	redis *redis.Client
}

// Build opens the store, archive and session backends and wires the
// service and auth gate on top of them. On error everything opened so far
// is closed.
func Build(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close(context.Background())
		}
	}()

	app.Store, err = store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	opts := core.Options{
		MaxConcurrentImports: cfg.Import.MaxConcurrent,
		ImportWait:           cfg.Import.MaxWaitTime,
		ImportTimeout:        cfg.Import.Timeout,
		ResultRetention:      cfg.Import.ResultRetention,
		OnImportComplete: func(res core.ImportResult) {
			slog.Info("import complete",
				"import_id", res.ImportID,
				"succeeded", res.Succeeded,
				"failed", res.Failed,
			)
		},
	}
	disk, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		return nil, err
	}
	if disk != nil {
		opts.Archive = disk
		slog.Info("import archive enabled", "driver", cfg.Archive.Driver)
	}
	app.Service = core.NewService(app.Store, opts)

	sessions, err := app.sessionStore(ctx)
	if err != nil {
		return nil, err
	}
	app.Provider = auth.NewLocalProvider(auth.LocalOptions{
		Credentials: app.Store,
		Sessions:    sessions,
		Secret:      []byte(cfg.Auth.JWTSecret),
		TokenTTL:    cfg.Auth.TokenTTL,
		BcryptCost:  cfg.Auth.BcryptCost,
	})
	app.Gate = auth.NewGate(app.Provider, app.Service, cfg.Auth.ProfileCacheTTL)

	return app, nil
}

func (a *App) sessionStore(ctx context.Context) (auth.SessionStore, error) {
	switch a.Config.Auth.SessionDriver {
	case config.SessionRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.Config.Auth.RedisAddr,
			Password: a.Config.Auth.RedisPassword,
			DB:       a.Config.Auth.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", a.Config.Auth.RedisAddr, err)
		}
		a.redis = client
		slog.Info("sessions stored in redis", "addr", a.Config.Auth.RedisAddr)
		return auth.NewRedisSessions(client), nil
	case config.SessionMemory, "":
		return auth.NewMemorySessions(), nil
	default:
		return nil, fmt.Errorf("unknown session driver %q", a.Config.Auth.SessionDriver)
	}
}

// Close releases the gate, redis client and store. Safe on a partly
// built App.
func (a *App) Close(ctx context.Context) {
	if a.Gate != nil {
		a.Gate.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			slog.Warn("close redis", "error", err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(ctx); err != nil {
			slog.Warn("close store", "error", err)
		}
	}
}
