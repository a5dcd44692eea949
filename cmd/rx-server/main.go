package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rxapi/rxapi/internal/config"
	"github.com/rxapi/rxapi/internal/domain/credential"
	"github.com/rxapi/rxapi/internal/domain/prescription"
	"github.com/rxapi/rxapi/internal/platform/auth"
	"github.com/rxapi/rxapi/internal/platform/db"
	"github.com/rxapi/rxapi/internal/platform/middleware"
)

const maxBodySize = "1M"

func main() {
	rootCmd := &cobra.Command{
		Use:   "rx-server",
		Short: "Prescription API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert reference doctors and medicaments that are missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context())
		},
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// connect loads configuration, opens the pool and makes sure the schema exists.
func connect(ctx context.Context, logger zerolog.Logger) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Msg("connected to database")

	if err := db.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return cfg, pool, nil
}

// newServer wires repositories, services and routes onto a fresh echo
// instance.
func newServer(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*echo.Echo, error) {
	txm := db.NewTxManager(pool)

	credSvc, err := credential.NewService(
		credential.NewUserRepoPG(pool),
		credential.NewRefreshTokenRepoPG(pool),
		txm,
		credential.Config{
			SigningKey: []byte(cfg.JWTSigningKey),
			Issuer:     cfg.JWTIssuer,
			Audience:   cfg.JWTAudience,
			AccessTTL:  cfg.AccessTokenTTL,
			RefreshTTL: cfg.RefreshTokenTTL,
			Iterations: cfg.PBKDF2Iterations,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("credential service: %w", err)
	}

	rxSvc := prescription.NewService(
		prescription.NewPatientRepoPG(pool),
		prescription.NewDoctorRepoPG(pool),
		prescription.NewMedicamentRepoPG(pool),
		prescription.NewPrescriptionRepoPG(pool),
		txm,
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)
	e.Validator = middleware.NewValidator()

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(echomw.BodyLimit(maxBodySize))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/health", db.HealthHandler(pool))

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	authGroup := e.Group("/auth", middleware.RateLimit(rateLimitCfg))
	credential.NewHandler(credSvc).RegisterRoutes(authGroup)

	rxGroup := e.Group("/prescriptions", auth.JWTMiddleware(credSvc.AccessTokens()))
	prescription.NewHandler(rxSvc).RegisterRoutes(rxGroup)

	return e, nil
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	ctx := context.Background()
	cfg, pool, err := connect(ctx, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer pool.Close()

	e, err := newServer(cfg, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func runSeed(ctx context.Context) error {
	logger := newLogger(os.Getenv("ENV"))

	_, pool, err := connect(ctx, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	res, err := prescription.Seed(ctx, db.NewTxManager(pool),
		prescription.NewDoctorRepoPG(pool), prescription.NewMedicamentRepoPG(pool),
		prescription.DefaultReferenceData())
	if err != nil {
		return err
	}
	logger.Info().
		Int("doctors_created", res.DoctorsCreated).
		Int("medicaments_created", res.MedicamentsCreated).
		Msg("reference data seeded")
	return nil
}
