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

	"github.com/clinicsys/clinic/internal/config"
	"github.com/clinicsys/clinic/internal/domain/billing"
	"github.com/clinicsys/clinic/internal/domain/catalog"
	"github.com/clinicsys/clinic/internal/domain/pharmacy"
	"github.com/clinicsys/clinic/internal/domain/prescription"
	"github.com/clinicsys/clinic/internal/domain/scheduling"
	"github.com/clinicsys/clinic/internal/domain/visit"
	"github.com/clinicsys/clinic/internal/platform/auth"
	"github.com/clinicsys/clinic/internal/platform/db"
	"github.com/clinicsys/clinic/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic workflow and billing server",
	}

	rootCmd.AddCommand(serveCmd(), migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				ctx := cmd.Context()
				pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
				if err != nil {
					return err
				}
				defer pool.Close()

				migrator := db.NewMigrator(pool, cfg.MigrationsDir)
				applied, err := migrator.Up(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("applied %d migration(s)\n", applied)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				ctx := cmd.Context()
				pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
				if err != nil {
					return err
				}
				defer pool.Close()

				migrator := db.NewMigrator(pool, cfg.MigrationsDir)
				statuses, err := migrator.Status(ctx)
				if err != nil {
					return err
				}
				for _, s := range statuses {
					state := "pending"
					if s.Applied {
						state = "applied"
					}
					fmt.Printf("%04d %-40s %s\n", s.Version, s.Name, state)
				}
				return nil
			},
		},
	)

	return cmd
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var logger zerolog.Logger
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(cfg.RequestTimeoutDuration()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	e.GET("/health", db.HealthHandler(pool))

	api := e.Group("/api/v1")
	if cfg.IsDev() && cfg.AuthSecret == "" {
		logger.Warn().Msg("AUTH_SECRET not set; using development auth middleware")
		api.Use(auth.DevAuthMiddleware())
	} else {
		api.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			SigningKey: []byte(cfg.AuthSecret),
		}))
	}
	// After auth so buckets are scoped per staff member, not just per IP.
	api.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))

	// Domain wiring, leaves first so downstream services can borrow the
	// narrow slices they declare.
	catalogSvc := catalog.NewService(pool,
		catalog.NewServiceRepoPG(pool),
		catalog.NewIndicatorRepoPG(pool),
		catalog.NewMappingRepoPG(pool),
		catalog.NewRosterRepoPG(pool))
	catalog.NewHandler(catalogSvc).RegisterRoutes(api)

	appointmentRepo := scheduling.NewAppointmentRepoPG(pool)
	schedulingSvc := scheduling.NewService(pool, appointmentRepo)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(api)

	pharmacySvc := pharmacy.NewService(pool,
		pharmacy.NewMedicationRepoPG(pool),
		pharmacy.NewBatchRepoPG(pool))
	pharmacy.NewHandler(pharmacySvc).RegisterRoutes(api)

	visitSvc := visit.NewService(pool,
		visit.NewVisitRepoPG(pool),
		visit.NewServiceOrderRepoPG(pool),
		visit.NewIndicatorResultRepoPG(pool),
		appointmentRepo,
		catalogSvc)
	visit.NewHandler(visitSvc).RegisterRoutes(api)

	prescriptionSvc := prescription.NewService(pool,
		prescription.NewPrescriptionRepoPG(pool),
		prescription.NewItemRepoPG(pool),
		visitSvc,
		catalogSvc,
		pharmacySvc)
	prescription.NewHandler(prescriptionSvc).RegisterRoutes(api)

	billingSvc := billing.NewService(pool,
		billing.NewBillingRepoPG(pool),
		billing.NewBillingItemRepoPG(pool),
		visitSvc,
		catalogSvc,
		prescriptionSvc,
		pharmacySvc)
	billing.NewHandler(billingSvc).RegisterRoutes(api)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
