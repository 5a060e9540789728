package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"monitoring-service/internal/config"
	"monitoring-service/internal/database/postgres"
	"monitoring-service/internal/gateway"
	"monitoring-service/internal/repository"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	cfg     *config.MonitoringServiceConfig
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "monitorctl",
	Short: "Vegetation monitoring operations",
	Long: "Runs the monitoring pipeline, seeds the vegetation index catalog and applies retention " +
		"directly against the service database, without going through the HTTP API.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelInfo
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		cfg = config.New()
	},
}

// environment holds the connections a command needs. close releases them.
type environment struct {
	db    *sqlx.DB
	store *repository.PostgresStore
}

func openEnvironment() (*environment, error) {
	db, err := postgres.ConnectAndCreateDB(cfg.PostgresCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &environment{db: db, store: repository.NewPostgresStore(db)}, nil
}

func (e *environment) close() {
	e.db.Close()
}

func newGateway() gateway.Gateway {
	if cfg.GatewayCfg.Mode == config.GatewayModeSynthetic {
		return gateway.NewSyntheticGateway()
	}
	return gateway.NewHTTPGateway(cfg.GatewayCfg, &http.Client{Timeout: cfg.GatewayCfg.RequestTimeout})
}

func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")

	setupCommands()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
