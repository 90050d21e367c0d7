package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"newsroom/internal/bootstrap"
	"newsroom/internal/bootstrap/logging"
	"newsroom/internal/errs"
	"newsroom/internal/infrastructure/notify"
	"newsroom/internal/transport/httpapi"
	"newsroom/internal/usecase/lifecycle"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API, status websocket and pipeline workers",
	RunE: withMode(bootstrap.RunMode{Serve: true}, func(ctx context.Context, cmd *cobra.Command, app *bootstrap.App, svc *lifecycle.Service, broker *notify.Broker) error {
		if err := app.InitSchema(ctx); err != nil {
			return errs.Wrap(err, "initialize schema")
		}
		if err := svc.Start(ctx); err != nil {
			return errs.Wrap(err, "start lifecycle service")
		}

		addr, _ := cmd.Flags().GetString("addr")
		if strings.TrimSpace(addr) == "" {
			addr = app.Config.HTTP.Addr
		}

		api := httpapi.NewServer(svc, broker, httpapi.Options{
			Version:        app.Config.App.Version,
			AllowedOrigins: app.Config.HTTP.AllowedOrigins,
			ImageDir:       app.ImageDir(),
			WebhookToken:   app.Config.Webhook.Token,
		})
		server := &http.Server{
			Addr:              addr,
			Handler:           api.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serveErr := make(chan error, 1)
		go func() {
			logging.Info(ctx, "http server listening", slog.String("addr", addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case err, ok := <-serveErr:
			if ok {
				return errs.Wrap(err, "serve http")
			}
			return nil
		case <-ctx.Done():
		}

		logging.Info(ctx, "shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), positiveOr(app.Config.HTTP.ShutdownTimeout, 10*time.Second))
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errs.Wrap(err, "shutdown http server")
		}
		return nil
	}),
}

func positiveOr(value time.Duration, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address; defaults to http.addr from config")
}
