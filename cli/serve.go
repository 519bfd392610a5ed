package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"

	"github.com/petal-labs/verdict/daemon"
	verdictotel "github.com/petal-labs/verdict/otel"
	"github.com/petal-labs/verdict/store"
)

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the rule daemon HTTP server",
		RunE:  runServe,
	}

	cmd.Flags().IntP("port", "p", 8080, "Listen port")
	cmd.Flags().String("host", "0.0.0.0", "Listen host")
	cmd.Flags().String("cors-origin", "*", "Allowed CORS origin")
	cmd.Flags().String("sqlite-path", "", "Path to SQLite database (default: ~/.verdict/verdict.db)")
	cmd.Flags().String("config", "", "Path to verdict.yaml")
	cmd.Flags().String("revalidate-cron", "", "Cron schedule for the stored-rule revalidation sweep")
	cmd.Flags().String("otlp-endpoint", "", "OTLP HTTP trace collector endpoint")
	cmd.Flags().Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", 60*time.Second, "HTTP write timeout")
	cmd.Flags().Int64("max-body", 1<<20, "Max request body size in bytes")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	corsOrigin, _ := cmd.Flags().GetString("cors-origin")
	readTimeout, _ := cmd.Flags().GetDuration("read-timeout")
	writeTimeout, _ := cmd.Flags().GetDuration("write-timeout")
	maxBody, _ := cmd.Flags().GetInt64("max-body")
	revalidateCron, _ := cmd.Flags().GetString("revalidate-cron")
	otlpEndpoint, _ := cmd.Flags().GetString("otlp-endpoint")
	explicitConfigPath, _ := cmd.Flags().GetString("config")

	logger := slog.Default()

	// Startup configuration.
	cfg := daemon.Config{}
	configPath, found, err := daemon.DiscoverConfigPath(explicitConfigPath)
	if err != nil {
		return exitError(exitFileNotFound, "%v", err)
	}
	if found {
		cfg, err = daemon.LoadConfig(configPath)
		if err != nil {
			return exitError(exitInputParse, "%v", err)
		}
		logger.Info("loaded config", "path", configPath, "attributes", len(cfg.Attributes))
	}
	catalog, err := daemon.BuildCatalog(cfg)
	if err != nil {
		return exitError(exitInputParse, "%v", err)
	}

	if revalidateCron == "" {
		revalidateCron = cfg.RevalidateCron
	}
	if otlpEndpoint == "" {
		otlpEndpoint = strings.TrimSpace(os.Getenv("VERDICT_OTLP_ENDPOINT"))
	}

	// Tracing.
	if otlpEndpoint != "" {
		shutdown, err := verdictotel.SetupTracing(cmd.Context(), verdictotel.TracingConfig{
			EndpointURL: otlpEndpoint,
			ServiceName: "verdict",
		})
		if err != nil {
			return fmt.Errorf("initializing tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	observer, err := verdictotel.NewEngineObserver(
		otelapi.GetMeterProvider().Meter("verdict/engine"),
		otelapi.GetTracerProvider().Tracer("verdict/engine"),
	)
	if err != nil {
		return fmt.Errorf("initializing engine observability: %w", err)
	}

	// Storage.
	dsn, err := resolveServeSQLiteDSN(cmd, cfg)
	if err != nil {
		return err
	}
	ruleStore, err := store.NewSQLiteStore(store.SQLiteStoreConfig{DSN: dsn})
	if err != nil {
		return fmt.Errorf("opening sqlite rule store: %w", err)
	}
	defer func() {
		_ = ruleStore.Close()
	}()

	daemonServer := daemon.NewServer(daemon.ServerConfig{
		Store:      ruleStore,
		Catalog:    catalog,
		Observer:   observer,
		Logger:     logger,
		CORSOrigin: corsOrigin,
		MaxBody:    maxBody,
	})

	// Revalidation sweep.
	if revalidateCron != "" {
		revalidator, err := daemon.NewRevalidator(ruleStore, catalog, revalidateCron, logger)
		if err != nil {
			return exitError(exitInputParse, "%v", err)
		}
		revalidator.Start()
		defer revalidator.Stop()
		logger.Info("revalidation sweep scheduled", "cron", revalidateCron)
	}

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      daemonServer.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	// Signal handling
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(cmd.OutOrStdout(), "verdict daemon listening on %s\n", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return exitError(exitRuntime, "shutdown error: %v", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitError(exitRuntime, "server error: %v", err)
		}
		return nil
	}
}

func resolveServeSQLiteDSN(cmd *cobra.Command, cfg daemon.Config) (string, error) {
	sqlitePath, _ := cmd.Flags().GetString("sqlite-path")
	dsn := strings.TrimSpace(sqlitePath)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("VERDICT_SQLITE_PATH"))
	}
	if dsn == "" {
		dsn = cfg.SQLitePath
	}
	if dsn == "" {
		defaultPath, err := store.DefaultSQLitePath()
		if err != nil {
			return "", fmt.Errorf("resolving default sqlite path: %w", err)
		}
		dsn = defaultPath
	}

	if !strings.HasPrefix(strings.ToLower(dsn), "file:") {
		dsn = filepath.Clean(dsn)
	}
	return dsn, nil
}
