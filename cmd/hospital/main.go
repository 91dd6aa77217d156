package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/hospital/internal/config"
	"github.com/ehr/hospital/internal/domain/scheduling"
	"github.com/ehr/hospital/internal/platform/db"
	"github.com/ehr/hospital/internal/platform/metrics"
	"github.com/ehr/hospital/internal/platform/middleware"
	"github.com/ehr/hospital/internal/shell"
	"github.com/ehr/hospital/migrations"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "hospital",
		Short:        "Hospital appointment scheduler",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	root.AddCommand(shellCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(reportCmd())
	root.AddCommand(migrateCmd())
	return root
}

func shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run the interactive front desk menu",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduling HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a doctor's booked appointments for one date",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorID, _ := cmd.Flags().GetInt("doctor")
			date, _ := cmd.Flags().GetString("date")
			if doctorID <= 0 || date == "" {
				return fmt.Errorf("--doctor and --date are required")
			}

			app, err := setup(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer app.close()

			shell.WriteSchedule(cmd.OutOrStdout(), doctorID, date,
				app.mgr.DoctorDailySchedule(cmd.Context(), doctorID, date))
			return nil
		},
	}
	cmd.Flags().Int("doctor", 0, "Doctor ID")
	cmd.Flags().String("date", "", "Date (YYYY-MM-DD)")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema used by the postgres backend",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				writeMigrationStatus(cmd.OutOrStdout(), statuses)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(ctx context.Context, fn func(context.Context, *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrations")
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, migrations.FS))
}

func writeMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

// newLogger writes JSON to stderr, or a console format in development, so
// that stdout stays free for the shell.
func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// app bundles what every subcommand that touches appointments needs.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	mgr       *scheduling.Manager
	health    db.Check
	collector *metrics.Collector
	closers   []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func setup(ctx context.Context, collector *metrics.Collector) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &app{cfg: cfg, logger: newLogger(cfg, os.Stderr), collector: collector}

	store, err := a.openStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	mode, err := scheduling.ParseFailureMode(cfg.PersistenceFailureMode)
	if err != nil {
		a.close()
		return nil, err
	}

	a.mgr, err = scheduling.NewManager(ctx, store, a.logger,
		scheduling.WithFailureMode(mode),
		scheduling.WithMetrics(collector),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// openStore connects the configured backend and records how to health-check
// and release it.
func (a *app) openStore(ctx context.Context) (scheduling.Store, error) {
	cfg := a.cfg
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		a.health = db.PoolCheck(pool)
		a.logger.Info().Msg("connected to database")
		return scheduling.NewStorePG(pool), nil

	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, func() { rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		a.health = db.Check{
			Backend: config.BackendRedis,
			Ping:    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}
		a.logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
		return scheduling.NewStoreRedis(rdb, cfg.RedisPrefix), nil

	default:
		a.health = db.Check{Backend: config.BackendFile}
		a.logger.Info().Str("dir", cfg.DataDir).Msg("using file storage")
		return scheduling.NewFileStore(cfg.DataDir), nil
	}
}

func runShell(ctx context.Context, in io.Reader, out io.Writer) error {
	a, err := setup(ctx, nil)
	if err != nil {
		return err
	}
	defer a.close()
	return shell.New(a.mgr, in, out, a.logger).Run(ctx)
}

// newServer wires middleware, health, metrics and the scheduling API.
func newServer(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(a.cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(a.cfg.RequestTimeout))
	if a.collector != nil {
		e.Use(a.collector.Middleware())
		e.GET("/metrics", echo.WrapHandler(a.collector.Handler()))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(a.health))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: a.cfg.RateLimitRPS,
		BurstSize:         a.cfg.RateLimitBurst,
	}))
	scheduling.NewHandler(a.mgr).RegisterRoutes(apiV1)

	return e
}

func runServer() error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := setup(context.Background(), metrics.NewCollector(reg))
	if err != nil {
		return err
	}
	defer a.close()

	e := newServer(a)
	logger := a.logger

	// Graceful shutdown
	go func() {
		addr := ":" + a.cfg.Port
		logger.Info().Str("addr", addr).Str("backend", a.cfg.StorageBackend).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
