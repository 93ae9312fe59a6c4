package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"janmat/internal/bootstrap/logging"
	"janmat/internal/errs"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load seed vocabulary and gazetteer from yaml files",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = deps.App.Config.Seeds.Dir
		}

		result, err := deps.Vocab.Seed(ctx, dir)
		if err != nil {
			logging.Error(ctx, "seed failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "seed reference data")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "seeded entries=%d geo_nodes=%d dir=%s\n", result.Entries, result.GeoNodes, dir); err != nil {
			return errs.Wrap(err, "write seed output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().String("dir", "", "Seed directory (defaults to seeds.dir from config)")
}
