package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"callstats/internal/config"
	"callstats/internal/db"
	"callstats/internal/http/handlers"
	appmw "callstats/internal/http/middleware"
	"callstats/internal/logger"
	"callstats/internal/telemetry"
)

var rootCmd = &cobra.Command{
	Use:   "callstats",
	Short: "Backend API with per-request call telemetry",
	Long: `callstats serves the health, data, user and statistics endpoints and
records every API call to the api_calls table. Call counts and uptime
shown by /api/stats are derived from that table on demand.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, lg := setup()
		gdb, err := db.Connect(cfg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close(gdb)
		if err := db.Migrate(gdb); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		lg.Info("database tables created successfully")
		return nil
	},
}

var recentLimit int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print call statistics derived from the event log as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, lg := setup()
		gdb, err := db.Connect(cfg)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close(gdb)

		ctx := cmd.Context()
		store := db.NewCallStore(gdb)
		stats := telemetry.NewStats(store, lg, nil, cfg.TelemetryTimeout)

		out := map[string]any{
			"total_api_calls": stats.TotalCalls(ctx),
			"health_checks":   stats.CountForEndpoint(ctx, "/health"),
			"data_requests":   stats.CountForEndpoint(ctx, "/api/data"),
			"uptime":          stats.Uptime(ctx),
		}
		if recentLimit > 0 {
			recent, err := store.Recent(ctx, recentLimit)
			if err != nil {
				return fmt.Errorf("recent calls: %w", err)
			}
			calls := make([]map[string]any, 0, len(recent))
			for _, ev := range recent {
				calls = append(calls, map[string]any{
					"id":         ev.ID,
					"endpoint":   ev.Endpoint,
					"method":     ev.Method,
					"timestamp":  handlers.FormatTimestamp(ev.Timestamp),
					"user_agent": ev.UserAgent,
					"ip_address": ev.SourceAddress,
				})
			}
			out["recent"] = calls
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	statsCmd.Flags().IntVar(&recentLimit, "recent", 0, "also list the N most recent calls")
	rootCmd.AddCommand(serveCmd, migrateCmd, statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *slog.Logger) {
	_ = godotenv.Load()
	cfg := config.Load()
	lg := logger.New("backend-api", cfg.LogLevel)
	slog.SetDefault(lg)
	return cfg, lg
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, lg := setup()

	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(gdb)

	// Tables are created at startup; a failure here is logged, not fatal,
	// since telemetry degrades to defaults while the store is unusable.
	if err := db.Migrate(gdb); err != nil {
		lg.Error("error creating database tables", "err", err)
	} else {
		lg.Info("database tables created successfully")
	}

	handler := newHandler(gdb, cfg, lg)

	server := &fasthttp.Server{
		Handler:      handler,
		Name:         "callstats",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		lg.Info("starting server", "addr", cfg.ListenAddr, "environment", cfg.Environment, "version", cfg.Version)
		errCh <- server.ListenAndServe(cfg.ListenAddr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.ShutdownWithContext(shutdownCtx)
}

func newHandler(gdb *gorm.DB, cfg *config.Config, lg *slog.Logger) fasthttp.RequestHandler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store := db.NewCallStore(gdb)
	metrics := telemetry.NewMetrics(reg)

	r := handlers.NewRouter(handlers.Deps{
		DB:       gdb,
		Config:   cfg,
		Recorder: telemetry.NewRecorder(store, lg, metrics, cfg.TelemetryTimeout),
		Stats:    telemetry.NewStats(store, lg, metrics, cfg.TelemetryTimeout),
		Gatherer: reg,
		Logger:   lg,
	})

	return appmw.Chain(r.Handler,
		appmw.RequestLogger(lg),
		appmw.RequestMetrics(reg, "/health", "/api/data", "/api/users", "/api/stats", "/api/test-db", "/metrics"),
		appmw.CORS(cfg),
	)
}
