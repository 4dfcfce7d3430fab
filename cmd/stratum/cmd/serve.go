package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/manak-ai/stratum/internal/config"
	"github.com/manak-ai/stratum/internal/logging"
	"github.com/manak-ai/stratum/internal/server"
	"github.com/manak-ai/stratum/internal/service"
	"github.com/manak-ai/stratum/internal/tool"
	"github.com/manak-ai/stratum/pkg/version"
)

const shutdownTimeout = 10 * time.Second

// newServeCmd creates the serve command.
func newServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		Long: `Start the Stratum HTTP service.

Configuration is read from CONFIG_PATH or the well-known search paths
(config.yaml, configs/stratum.yaml), with STRATUM_* environment
overrides applied on top.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Bind address (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides config)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log, logCleanup, err := logging.Setup(logging.Config{
		Level:     cfg.Logging.Level,
		FilePath:  cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logCleanup()
	slog.SetDefault(log)

	log.Info("starting stratum",
		slog.String("version", version.Short()),
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port))

	container := service.NewContainer(cfg, log)
	registry := tool.NewRegistry(container, log)

	if cfg.Kafka.Enabled {
		publishTools(ctx, cfg, registry, log)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           server.New(container, registry, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", slog.String("error", err.Error()))
	}

	// Drain the indexing pool before snapshotting so in-flight writes land
	// in the saved collections.
	container.Pool().Wait()
	if err := container.Store().SaveAll(); err != nil {
		log.Error("snapshot save failed", slog.String("error", err.Error()))
		return err
	}

	log.Info("stopped")
	return nil
}

// publishTools announces the tool descriptors on the event bus. Failure
// is logged and the service starts anyway; consumers re-read the topic.
func publishTools(ctx context.Context, cfg *config.Config, registry *tool.Registry, log *slog.Logger) {
	publisher := tool.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, server.ServiceName, log)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("tool publisher close failed", slog.String("error", err.Error()))
		}
	}()

	publishCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := publisher.Publish(publishCtx, registry.Descriptors()); err != nil {
		log.Warn("tool descriptor publish failed",
			slog.String("topic", cfg.Kafka.Topic),
			slog.String("error", err.Error()))
	}
}
