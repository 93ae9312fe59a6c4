package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"janmat/internal/bootstrap/logging"
	"janmat/internal/errs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the parsing, review and analytics JSON API",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logging.Info(ctx, "starting api server", slog.String("addr", deps.App.Config.Server.Addr))
		if err := deps.Server.ListenAndServe(ctx); err != nil {
			logging.Error(ctx, "api server failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "serve api")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
