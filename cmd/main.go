package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	rd "github.com/redis/go-redis/v9"

	"github.com/binodtmg/esewa-settlement-service/internal/application"
	"github.com/binodtmg/esewa-settlement-service/internal/config"
	"github.com/binodtmg/esewa-settlement-service/internal/esewa"
	"github.com/binodtmg/esewa-settlement-service/internal/kafka"
	"github.com/binodtmg/esewa-settlement-service/internal/logger"
	"github.com/binodtmg/esewa-settlement-service/internal/metrics"
	"github.com/binodtmg/esewa-settlement-service/internal/migrate"
	"github.com/binodtmg/esewa-settlement-service/internal/presentation"
	"github.com/binodtmg/esewa-settlement-service/internal/redislock"
	"github.com/binodtmg/esewa-settlement-service/internal/repository"
)

func main() {
	logger.Init()
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Warn("config load failed", "err", err)
		os.Exit(1)
	}

	if err := migrate.Up(cfg.DB_STRING); err != nil {
		logger.Warn("migrations failed", "err", err)
		os.Exit(1)
	}

	// DB pool
	pool, err := pgxpool.New(context.Background(), cfg.DB_STRING)
	if err != nil {
		logger.Warn("pgxpool new failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		logger.Warn("db ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("db connected")

	rdb := rd.NewClient(&rd.Options{Addr: cfg.REDIS_ADDR, DB: cfg.REDIS_DB})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		// lock degrades to the DB claim; keep running
		logger.Warn("redis ping failed, tx lock degraded", "err", err)
	}
	defer rdb.Close()

	prod := kafka.NewProducer(cfg.KAFKA_BROKERS, cfg.KAFKA_TOPIC)
	defer prod.Close()

	// Wiring
	repo := repository.NewOrderRepository(pool)
	svc := application.NewSettlementService(repo, cfg.ESEWA_SECRET_KEY, cfg.SETTLEMENT_TTL).
		WithLock(redislock.New(rdb, cfg.LOCK_TTL)).
		WithPublisher(prod)
	if cfg.ESEWA_STATUS_CHECK {
		svc = svc.WithVerifier(esewa.NewStatusClient(cfg.ESEWA_BASE_URL, cfg.ESEWA_PRODUCT_CODE))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	h := presentation.NewSettlementHandler(svc, cfg.SEED_ADMIN_TOKEN)
	h.Register(r)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	addr := ":" + cfg.HTTP_PORT
	logger.Info("starting http", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Warn("http server crashed", "err", err)
		os.Exit(1)
	}
}
