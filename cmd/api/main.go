package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/atelierzen/booking-backend/internal/adapters/jsonfile"
	mongoadapter "github.com/atelierzen/booking-backend/internal/adapters/mongo"
	"github.com/atelierzen/booking-backend/internal/adapters/postgres"
	redisadapter "github.com/atelierzen/booking-backend/internal/adapters/redis"
	"github.com/atelierzen/booking-backend/internal/auth"
	"github.com/atelierzen/booking-backend/internal/config"
	"github.com/atelierzen/booking-backend/internal/counters"
	httphandler "github.com/atelierzen/booking-backend/internal/http"
	"github.com/atelierzen/booking-backend/internal/observability"
	"github.com/atelierzen/booking-backend/internal/payment"
	"github.com/atelierzen/booking-backend/internal/rateLimit"
	"github.com/atelierzen/booking-backend/internal/reconciler"
	"github.com/atelierzen/booking-backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	var st store.Store
	switch cfg.StorageDriver {
	case config.DriverJSON:
		logger.Warn("json storage driver selected: dev only, no cross-process idempotence guarantee")
		st = jsonfile.New(cfg.JSONDataFile)
	default:
		pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pool.Close()
		st = postgres.NewRepository(pool)
	}

	var audit reconciler.AuditSink
	if cfg.MongoURI != "" {
		mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer mongoClient.Disconnect(context.Background())
		audit = mongoadapter.NewAuditLogger(mongoClient.Database("booking"), logger)
	}

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	sessions := redisadapter.NewSessions(redisClient, cfg.SessionTTL)
	rl := rateLimit.NewRateLimiter(redisCache)
	authSvc := auth.NewService(sessions, cfg.AdminEmail, cfg.AdminPassword)

	sink := counters.NewMemory(observability.WebhookOutcomes)
	rec := reconciler.New(st, sink, audit, logger)

	verifier := payment.NewWebhookVerifier(cfg.StripeWebhookSecret)
	checkout := payment.NewStripeCheckout(cfg.StripeSecretKey, cfg.AppURL)

	handlers := httphandler.NewHandlers(cfg, st, verifier, checkout, rec, sink, authSvc, logger)
	r := httphandler.SetupRouter(handlers, logger, rl, authSvc)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", cfg.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown server ...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
	logger.Info("server exiting")
}
