// Package admin provides destructive maintenance operations for the
// inventory stores.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/inventory/internal/core"
)

// ResetTimeout is the maximum duration for reset operations.
const ResetTimeout = 30 * time.Second

// ErrResetUnsupported is returned for stores that cannot be reset.
var ErrResetUnsupported = errors.New("store does not support reset")

// CatalogResetter is implemented by stores able to drop all catalog data.
type CatalogResetter interface {
	ResetCatalog(ctx context.Context) error
}

type resetFn func(ctx context.Context) error

// ResetCatalog deletes every product and category. Users and their
// credentials survive. This cannot be undone.
func ResetCatalog(ctx context.Context, store core.Store) error {
	r, ok := store.(CatalogResetter)
	if !ok {
		return ErrResetUnsupported
	}

	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	if err := runResets(ctx, []resetFn{r.ResetCatalog}); err != nil {
		return fmt.Errorf("reset catalog: %w", err)
	}
	slog.Warn("catalog reset", "actor", core.ActorFromContext(ctx))
	return nil
}

func runResets(ctx context.Context, resets []resetFn) error {
	for _, reset := range resets {
		if err := reset(ctx); err != nil {
			return err
		}
	}
	return nil
}
