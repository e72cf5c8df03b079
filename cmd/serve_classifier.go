package cmd

import (
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"civicdesk/internal/bootstrap/config"
	"civicdesk/internal/bootstrap/logging"
	"civicdesk/internal/devclassifier"
	"civicdesk/internal/errs"
)

// serveClassifierCmd needs only the config, so it does not boot the fx graph.
var serveClassifierCmd = &cobra.Command{
	Use:   "serve-classifier",
	Short: "Start the keyword-rule classification service for local development",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		cfg, err := config.Load(ctx, cfgFile)
		if err != nil {
			return errs.Wrap(err, "load config")
		}
		ctx = logging.WithLogger(ctx, logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))

		addr, _ := cmd.Flags().GetString("addr")
		addr = strings.TrimSpace(addr)
		if addr == "" {
			addr = cfg.Classifier.Addr
		}

		server := &http.Server{
			Addr:         addr,
			Handler:      devclassifier.NewHandler(),
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		}
		logging.Info(ctx, "dev classifier started", slog.String("addr", addr))
		return runServer(ctx, server, cfg.HTTP.ShutdownTimeout)
	},
}

func init() {
	rootCmd.AddCommand(serveClassifierCmd)
	serveClassifierCmd.Flags().String("addr", "", "Listen address (overrides classifier.addr)")
}
