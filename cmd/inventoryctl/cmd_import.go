package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/inventory/internal/core"
)

// inventoryctl template --format csv --out plantilla.csv
func newTemplateCmd() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the import template with the current categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != core.FormatXLSX && format != core.FormatCSV {
				return fmt.Errorf("unknown format %q (use xlsx or csv)", format)
			}
			ctx, app, err := boot(cmd)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			names, err := app.Service.CategoryNames(ctx)
			if err != nil {
				return err
			}
			data, err := core.BuildTemplate(format, names)
			if err != nil {
				return err
			}
			if out == "" {
				out = core.TemplateFileName(format)
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", core.FormatXLSX, "xlsx or csv")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default plantilla_productos.<format>)")
	return cmd
}

// inventoryctl import productos.xlsx [--dry-run]
func newImportCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Validate a spreadsheet and import its products one by one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			ctx, app, err := boot(cmd)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			out := cmd.OutOrStdout()
			v, err := app.Service.ValidateImportFile(ctx, filepath.Base(args[0]), data)
			if err != nil {
				return err
			}
			for _, w := range v.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			for _, e := range v.Errors {
				fmt.Fprintf(out, "error: %s\n", e)
			}
			if !v.Valid {
				return errors.New("file rejected, nothing imported")
			}
			fmt.Fprintf(out, "%d of %d rows ready to import\n", len(v.Products), v.Total)
			if dryRun {
				return nil
			}

			res := app.Service.RunImport(ctx, v.Products, func(percent int, o core.ImportOutcome) {
				mark := "ok"
				if o.Status != core.OutcomeSuccess {
					mark = "FAILED"
				}
				fmt.Fprintf(out, "[%3d%%] %-6s %s %s\n", percent, mark, o.SKU, o.Message)
			})
			fmt.Fprintf(out, "imported %d, failed %d in %dms\n", res.Succeeded, res.Failed, res.DurationMs)
			if res.Failed > 0 {
				return fmt.Errorf("%d products were not imported", res.Failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate only")
	return cmd
}
