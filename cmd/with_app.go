package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"newsroom/internal/bootstrap"
	"newsroom/internal/bootstrap/config"
	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/errs"
	"newsroom/internal/infrastructure/notify"
	"newsroom/internal/usecase/lifecycle"
)

// appRun receives the assembled container. ctx already carries the configured logger.
type appRun func(ctx context.Context, cmd *cobra.Command, app *bootstrap.App, svc *lifecycle.Service) error

// withApp builds the container for one-shot commands; the service leaves dispatch to a running server.
func withApp(run appRun) func(cmd *cobra.Command, args []string) error {
	return withMode(bootstrap.RunMode{}, func(ctx context.Context, cmd *cobra.Command, app *bootstrap.App, svc *lifecycle.Service, _ *notify.Broker) error {
		return run(ctx, cmd, app, svc)
	})
}

func withMode(mode bootstrap.RunMode, run func(ctx context.Context, cmd *cobra.Command, app *bootstrap.App, svc *lifecycle.Service, broker *notify.Broker) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		var app *bootstrap.App
		var svc *lifecycle.Service
		var broker *notify.Broker
		fxApp := fx.New(
			bootstrap.Module,
			fx.Supply(mode),
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Populate(&app, &svc, &broker),
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

		ctx = withConfiguredLogger(ctx, cmd, app.Config.Log)
		if err := run(ctx, cmd, app, svc, broker); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}

// withConfiguredLogger swaps in a logger built from log config unless the flags were set explicitly.
func withConfiguredLogger(ctx context.Context, cmd *cobra.Command, cfg config.LogConfig) context.Context {
	format, level := cfg.Format, cfg.Level
	if cmd.Flags().Changed("log-format") {
		format = logFormat
	}
	if cmd.Flags().Changed("log-level") {
		level = logLevel
	}

	return logging.WithLogger(ctx, logging.New(cmd.ErrOrStderr(), format, level))
}
