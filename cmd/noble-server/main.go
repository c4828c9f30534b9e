package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Nobledental/NOBLE-OS-sub004/internal/config"
	"github.com/Nobledental/NOBLE-OS-sub004/internal/domain/billing"
	"github.com/Nobledental/NOBLE-OS-sub004/internal/domain/chart"
	"github.com/Nobledental/NOBLE-OS-sub004/internal/domain/complication"
	"github.com/Nobledental/NOBLE-OS-sub004/internal/domain/encounter"
	"github.com/Nobledental/NOBLE-OS-sub004/internal/domain/inventory"
	"github.com/Nobledental/NOBLE-OS-sub004/internal/platform/auth"
	"github.com/Nobledental/NOBLE-OS-sub004/internal/platform/db"
	"github.com/Nobledental/NOBLE-OS-sub004/internal/platform/events"
	"github.com/Nobledental/NOBLE-OS-sub004/internal/platform/middleware"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "noble-server",
		Short:   "Dental point-of-care clinical workflow engine",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	var migrationsDir string
	migrateUpCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(migrationsDir, func(ctx context.Context, m *db.Migrator) error {
				n, err := m.Up(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("applied %d migration(s)\n", n)
				return nil
			})
		},
	}
	migrateStatusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(migrationsDir, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return err
				}
				for _, st := range statuses {
					state := "pending"
					if st.Applied {
						state = "applied " + st.AppliedAt.Format(time.RFC3339)
					}
					fmt.Printf("%03d %-40s %s\n", st.Version, st.Name, state)
				}
				return nil
			})
		},
	}
	migrateCmd.PersistentFlags().StringVar(&migrationsDir, "dir", "migrations", "migrations directory")
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runMigrate(dir string, fn func(context.Context, *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, dir))
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "noble-server").Logger()
	if cfg.IsDev() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("database connection established")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, "X-Request-ID"},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Secret:   []byte(cfg.AuthSecret),
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})

	// Domain wiring. The event bus is synchronous; the webhook engine fans
	// emitted events out to the external billing, inventory and pager
	// collaborators.
	bus := events.NewBus()

	chartRepo := chart.NewRepo(pool)
	chartSvc := chart.NewService(chartRepo, bus)
	chartHandler := chart.NewHandler(chartSvc)

	invRepo := inventory.NewRepo(pool)
	invSvc := inventory.NewService(invRepo, logger)
	invHandler := inventory.NewHandler(invSvc)

	encRepo := encounter.NewRepo(pool)

	billRepo := billing.NewRepo(pool)
	billSvc := billing.NewService(billRepo)
	billHandler := billing.NewHandler(billSvc)
	trigger := billing.NewTrigger(billRepo, invSvc, encRepo, bus, logger)

	encSvc := encounter.NewService(encRepo, chartSvc, trigger, bus, logger)
	encHandler := encounter.NewHandler(encSvc)

	compRepo := complication.NewRepo(pool)
	compSvc := complication.NewService(compRepo, complication.PostOpTree(), bus, logger)
	compHandler := complication.NewHandler(compSvc)

	monitor := complication.NewMonitor(compRepo, bus, logger, cfg.SLACheckInterval)
	go monitor.Start(ctx)
	logger.Info().Dur("interval", cfg.SLACheckInterval).Msg("complication SLA monitor started")

	webhooks := events.NewWebhookEngine(logger)
	if cfg.BillingWebhookURL != "" {
		webhooks.Register(events.Endpoint{Name: "billing", URL: cfg.BillingWebhookURL, EventName: events.BillingLineRequested})
	}
	if cfg.InventoryWebhookURL != "" {
		for _, name := range []string{events.StockDeductionRequested, events.LowStockWarning, events.StockDepletionError} {
			webhooks.Register(events.Endpoint{Name: "inventory", URL: cfg.InventoryWebhookURL, EventName: name})
		}
	}
	if cfg.PagerWebhookURL != "" {
		for _, name := range []string{events.SlaBreached, events.UrgentEscalation} {
			webhooks.Register(events.Endpoint{Name: "pager", URL: cfg.PagerWebhookURL, EventName: name})
		}
	}
	webhooks.AttachTo(bus)
	go webhooks.Start(ctx)

	apiV1 := e.Group("/api/v1")
	chartHandler.RegisterRoutes(apiV1)
	encHandler.RegisterRoutes(apiV1)
	invHandler.RegisterRoutes(apiV1)
	billHandler.RegisterRoutes(apiV1)
	compHandler.RegisterRoutes(apiV1)

	// Start server in a goroutine so we can handle shutdown signals.
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting HTTP server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
