package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"janmat/internal/bootstrap"
	"janmat/internal/bootstrap/logging"
	"janmat/internal/errs"
	"janmat/internal/httpapi"
	"janmat/internal/usecase/geoquery"
	"janmat/internal/usecase/learning"
	"janmat/internal/usecase/parsing"
	"janmat/internal/usecase/vocabadmin"
)

// appDeps is the wiring surface available to commands. Each command pulls
// what it needs and ignores the rest.
type appDeps struct {
	fx.In

	App     *bootstrap.App
	Parser  *parsing.Service
	Reviews *learning.Service
	Queries *geoquery.Service
	Vocab   *vocabadmin.Service
	Server  *httpapi.Server
}

func withApp(run func(cmd *cobra.Command, deps appDeps) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		var deps appDeps
		fxApp := fx.New(
			bootstrap.Module,
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Populate(&deps),
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		if err := run(cmd, deps); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}
