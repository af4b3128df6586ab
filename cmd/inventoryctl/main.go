// Command inventoryctl manages users, categories and bulk imports from the
// shell, against the same store the server uses.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/inventory/internal/application"
	"github.com/JonMunkholm/inventory/internal/config"
	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/JonMunkholm/inventory/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorText(err))
		os.Exit(1)
	}
}

// errorText prefers the user-facing message and keeps the technical error
// on a second line for anything it maps.
func errorText(err error) string {
	if !core.IsUserFacing(err) {
		return "error: " + err.Error()
	}
	return core.FormatUserError(err) + "\n  " + err.Error()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "inventoryctl",
		Short:         "Manage the warehouse inventory from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("actor", "inventoryctl", "name recorded as the author of changes")

	// Users
	root.AddCommand(newUserCmd())

	// Catalog
	root.AddCommand(newCategoryCmd())
	root.AddCommand(newResetCmd())

	// Imports
	root.AddCommand(newTemplateCmd())
	root.AddCommand(newImportCmd())
	return root
}

// boot loads .env and configuration, then wires the application. Logs go to
// stderr so command output stays pipeable.
func boot(cmd *cobra.Command) (context.Context, *application.App, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	actor, _ := cmd.Flags().GetString("actor")
	ctx = core.ContextWithActor(ctx, actor)

	app, err := application.Build(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Store.Driver == config.StoreMemory {
		slog.Warn("memory store selected, changes are discarded when the command exits")
	}
	return ctx, app, nil
}
