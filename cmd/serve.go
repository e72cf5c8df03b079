package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"civicdesk/internal/bootstrap"
	"civicdesk/internal/bootstrap/logging"
	"civicdesk/internal/errs"
	"civicdesk/internal/transport/httpapi"
	grievanceuc "civicdesk/internal/usecase/grievance"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the grievance HTTP API",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *grievanceuc.Service) error {
		ctx := cmd.Context()

		if err := app.InitSchema(ctx); err != nil {
			return errs.Wrap(err, "migrate schema")
		}

		addr, _ := cmd.Flags().GetString("addr")
		addr = strings.TrimSpace(addr)
		if addr == "" {
			addr = app.Config.HTTP.Addr
		}

		server := &http.Server{
			Addr: addr,
			Handler: httpapi.NewRouter(httpapi.Deps{
				Service:        svc,
				Zones:          app.Zones,
				Events:         app.Hub,
				MediaDir:       app.Config.Media.Dir,
				MaxUploadBytes: app.Config.HTTP.MaxUploadBytes,
				Logger:         app.Logger,
			}),
			ReadTimeout:  app.Config.HTTP.ReadTimeout,
			WriteTimeout: app.Config.HTTP.WriteTimeout,
		}

		logging.Info(ctx, "grievance api started",
			slog.String("addr", addr),
			slog.String("public_base_url", app.Config.HTTP.PublicBaseURL),
			slog.String("classifier", app.Config.Classifier.BaseURL),
		)
		return runServer(ctx, server, app.Config.HTTP.ShutdownTimeout)
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides http.addr)")
}

// runServer serves until SIGINT/SIGTERM or ctx ends, then shuts down gracefully.
func runServer(ctx context.Context, server *http.Server, shutdownTimeout time.Duration) error {
	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return errs.Wrapf(err, "listen on %s", server.Addr)
	}
	return serveListener(ctx, server, listener, shutdownTimeout)
}

func serveListener(ctx context.Context, server *http.Server, listener net.Listener, shutdownTimeout time.Duration) error {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	server.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		logging.Info(ctx, "shutdown requested")
	case err := <-errCh:
		if err != nil {
			logging.Error(ctx, "http server failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "serve http")
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errs.Wrap(err, "shutdown http server")
	}
	logging.Info(ctx, "http server stopped")
	return nil
}
