package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/biyshop/payments-backend/internal/api"
	"github.com/biyshop/payments-backend/internal/auth"
	"github.com/biyshop/payments-backend/internal/config"
	"github.com/biyshop/payments-backend/internal/correlation"
	"github.com/biyshop/payments-backend/internal/db"
	"github.com/biyshop/payments-backend/internal/logger"
	"github.com/biyshop/payments-backend/internal/metrics"
	"github.com/biyshop/payments-backend/internal/mpesa"
	"github.com/biyshop/payments-backend/internal/notify"
	"github.com/biyshop/payments-backend/internal/repository/postgres"
	"github.com/biyshop/payments-backend/internal/services"
	"github.com/biyshop/payments-backend/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if os.Getenv("APP_MIGRATE") == "true" {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
	}

	metrics.Init()

	repos := postgres.NewRepositories(pool)
	wp := worker.NewPool(4)
	defer wp.Stop()

	gateway := mpesa.NewClient(mpesa.Config{
		BaseURL:        mpesa.BaseURL(cfg.MpesaEnvironment),
		ConsumerKey:    cfg.MpesaConsumerKey,
		ConsumerSecret: cfg.MpesaConsumerSecret,
		Shortcode:      cfg.MpesaShortcode,
		Passkey:        cfg.MpesaPasskey,
		CallbackURL:    cfg.MpesaCallbackURL,
		Timeout:        cfg.MpesaTimeout,
	})

	store := newIntentStore(cfg, pool)
	notifier := notify.LogNotifier{}

	orderSvc := services.NewOrderService(repos.Orders)
	paymentSvc := services.NewPaymentService(store, repos.Orders, gateway, notifier, wp, cfg.IntentTTL)

	reconciler := services.NewReconciler(store, repos.Orders, gateway, cfg.ReconcileInterval, cfg.ReconcileQuery)
	if err := reconciler.Start(); err != nil {
		log.Error("reconciler", "err", err)
		os.Exit(1)
	}
	defer reconciler.Stop()

	tm := auth.NewTokenManager(cfg.JWTSecret, 15*time.Minute, 24*time.Hour)
	r := api.NewRouter(cfg, tm, orderSvc, paymentSvc)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "mpesa_env", cfg.MpesaEnvironment, "intent_store", cfg.IntentStore)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func newIntentStore(cfg config.Config, pool *pgxpool.Pool) correlation.Store {
	if cfg.IntentStore == "postgres" {
		return correlation.NewPostgresStore(pool)
	}
	// Default: in-memory. Intents do not survive a restart; a callback for
	// a lost handle is absorbed as an unknown-handle no-op.
	return correlation.NewMemoryStore()
}
