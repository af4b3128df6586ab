package application

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/inventory/internal/config"
	"github.com/JonMunkholm/inventory/internal/core"
)

func memoryConfig(t *testing.T) *config.Config {
	return &config.Config{
		Store:   config.StoreConfig{Driver: config.StoreMemory},
		Import:  config.ImportConfig{MaxConcurrent: 1, MaxWaitTime: time.Second, Timeout: time.Minute, ResultRetention: time.Minute},
		Auth:    config.AuthConfig{JWTSecret: "application-test-secret", TokenTTL: time.Hour, BcryptCost: 4, SessionDriver: config.SessionMemory},
		Archive: config.ArchiveConfig{Driver: config.ArchiveLocal, LocalRoot: t.TempDir()},
	}
}

func TestBuildMemory(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig(t)

	app, err := Build(ctx, cfg)
	require.NoError(t, err)
	defer app.Close(ctx)

	uid, err := app.Provider.Register(ctx, "ana@example.com", "password-123")
	require.NoError(t, err)
	_, err = app.Service.CreateProfile(ctx, core.UserProfile{UID: uid, Email: "ana@example.com", Role: core.RoleAdmin})
	require.NoError(t, err)

	_, sess, err := app.Gate.SignIn(ctx, "ana@example.com", "password-123")
	require.NoError(t, err)
	assert.True(t, sess.IsAdmin())
}

func TestBuildArchivesImports(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig(t)

	app, err := Build(ctx, cfg)
	require.NoError(t, err)
	defer app.Close(ctx)

	_, err = app.Service.CreateCategory(ctx, "Plásticos")
	require.NoError(t, err)

	id, err := app.Service.StartImport(ctx, core.ImportRequest{
		FileName: "productos.csv",
		Data:     []byte("producto,sku\n"),
	})
	require.NoError(t, err)
	_, err = app.Service.ImportResultOf(ctx, id)
	require.NoError(t, err)

	var found []string
	err = filepath.WalkDir(cfg.Archive.LocalRoot, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			found = append(found, filepath.Base(path))
		}
		return err
	})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, id+"-productos.csv", found[0])
}

func TestBuildRejectsUnknownSessionDriver(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Auth.SessionDriver = "etcd"

	_, err := Build(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown session driver")
}
