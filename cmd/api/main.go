// Package main is the entry point for the booking API server.
// Its sole responsibility is wiring dependencies together and starting the
// server. No business logic belongs here.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for goose
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"github.com/fellsidecars/backend/internal/config"
	"github.com/fellsidecars/backend/internal/handler"
	"github.com/fellsidecars/backend/internal/middleware"
	"github.com/fellsidecars/backend/internal/notify"
	"github.com/fellsidecars/backend/internal/payment"
	"github.com/fellsidecars/backend/internal/pricing"
	"github.com/fellsidecars/backend/internal/quote"
	"github.com/fellsidecars/backend/internal/repo"
	"github.com/fellsidecars/backend/internal/routing"
	"github.com/fellsidecars/backend/internal/service"
	"github.com/fellsidecars/backend/internal/session"
	"github.com/fellsidecars/backend/migrations"
)

// webhookBodyLimit caps payment webhook bodies. Provider events are small;
// anything larger is noise.
const webhookBodyLimit = 1 << 20

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	// JSON handler writes machine-readable output suitable for log aggregators.
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// --- Database ---------------------------------------------------------
	// pgxpool manages a pool of Postgres connections.
	// New() does not open connections immediately — the first query does.
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(context.Background()); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	if err := runMigrations(cfg.DatabaseURL); err != nil {
		slog.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	// --- Collaborators ----------------------------------------------------
	externalTimeout := time.Duration(cfg.ExternalTimeoutMS) * time.Millisecond

	maps, err := routing.NewGoogle(cfg.GoogleMapsAPIKey)
	if err != nil {
		slog.Error("failed to create maps client", "error", err)
		os.Exit(1)
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		slog.Error("invalid timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	resolver := pricing.NewResolver(pricing.Config{
		MinimumFarePence:         cfg.MinimumFarePence,
		PerMilePence:             cfg.PerMilePence,
		VATBasisPoints:           cfg.VATBasisPoints,
		NightStartHour:           cfg.NightStartHour,
		NightPercent:             cfg.NightPercent,
		NightAppliesToFixedFares: cfg.NightAppliesToFixedFares,
		ZoneFares:                cfg.ZoneFares,
		ZoneOrder:                cfg.ZoneMatches(),
		Location:                 location,
		ExternalTimeout:          externalTimeout,
	}, maps, maps, logger)

	signer := quote.NewSigner(cfg.QuoteSigningSecret)

	var checkout service.CheckoutCreator
	if cfg.PaymentAPIBase != "" {
		checkout = payment.NewClient(cfg.PaymentAPIBase, cfg.PaymentAPIKey, externalTimeout)
	}
	var notifier service.Notifier
	if cfg.NotifyURL != "" {
		notifier = notify.NewGateway(cfg.NotifyURL, externalTimeout)
	}
	var fleet service.FleetDispatcher
	if cfg.FleetDispatchURL != "" {
		fleet = notify.NewFleet(cfg.FleetDispatchURL, externalTimeout)
	}

	var sessions handler.QuoteStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		sessions = session.NewStore(rdb, time.Duration(cfg.SessionTTLMinutes)*time.Minute)
	}

	// --- Services ---------------------------------------------------------
	bookingRepo := repo.NewBookingRepo(pool)
	schedulerRepo := repo.NewSchedulerRepo(pool)
	driverRepo := repo.NewDriverRepo(pool)
	reservationRepo := repo.NewReservationRepo(pool)

	quoteSvc := service.NewQuoteService(resolver, signer)
	bookingSvc := service.NewBookingService(quoteSvc, schedulerRepo, checkout, logger)
	paymentSvc := service.NewPaymentService(cfg.PaymentWebhookSecret, bookingRepo, notifier, fleet, logger)
	dispatchSvc := service.NewDispatchService(bookingRepo, schedulerRepo, fleet, logger)
	driverSvc := service.NewDriverService(driverRepo, reservationRepo)

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer.
	// RequestID generates a unique trace ID per request.
	// RealIP sets r.RemoteAddr from X-Forwarded-For / X-Real-IP (safe behind a proxy).
	// SlogLogger writes one structured JSON log line per request.
	// Recoverer catches panics and returns HTTP 500 instead of crashing.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(webhookBodyLimit))

	srv := handler.NewServer(quoteSvc, bookingSvc, paymentSvc, dispatchSvc, driverSvc, sessions, logger)
	srv.Routes(r)

	// --- HTTP Server ------------------------------------------------------
	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, then give in-flight requests
	// up to 15 seconds to complete before forcefully closing.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// runMigrations applies pending embedded migrations. goose needs a
// database/sql handle, separate from the pgx pool used for queries.
func runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return err
	}
	results, err := provider.Up(context.Background())
	if err != nil {
		return err
	}
	if len(results) > 0 {
		slog.Info("migrations applied", "count", len(results))
	}
	return nil
}
