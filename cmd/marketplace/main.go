package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/tokenhaus/marketplace/internal/adapters/api"
	"github.com/tokenhaus/marketplace/internal/adapters/cache"
	adapterdb "github.com/tokenhaus/marketplace/internal/adapters/database"
	adapterevents "github.com/tokenhaus/marketplace/internal/adapters/events"
	"github.com/tokenhaus/marketplace/internal/auction"
	"github.com/tokenhaus/marketplace/internal/config"
	"github.com/tokenhaus/marketplace/internal/token"
	"github.com/tokenhaus/marketplace/pkg/auth"
	pkgdb "github.com/tokenhaus/marketplace/pkg/database"
	pkgevents "github.com/tokenhaus/marketplace/pkg/events"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Unable to load config", "error", err)
		os.Exit(1)
	}

	if cfg.DatabaseURL == "" {
		logger.Error("MARKETPLACE_DB_URL is not set")
		os.Exit(1)
	}
	if cfg.RabbitURL == "" {
		logger.Error("RABBITMQ_URL is not set")
		os.Exit(1)
	}
	if cfg.JWTPublicKeyFile == "" {
		logger.Error("JWT_PUBLIC_KEY_FILE is not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Migrations
	if err := adapterdb.RunMigrations(cfg.DatabaseURL); err != nil {
		logger.Error("Unable to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("Migrations applied")

	// 2. Postgres
	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Unable to parse database config", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("Unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if pingErr := pool.Ping(ctx); pingErr != nil {
		logger.Error("Unable to ping database", "error", pingErr)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

	// 3. RabbitMQ
	amqpConn, err := amqp091.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	payoutPublisher, err := adapterevents.NewRabbitMQPublisher(amqpConn)
	if err != nil {
		logger.Error("Failed to create payout publisher", "error", err)
		os.Exit(1)
	}
	defer payoutPublisher.Close()

	// 4. Redis (optional snapshot cache)
	var snapshotCache auction.SnapshotCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis connection failed, running without snapshot cache", "error", err)
		} else {
			logger.Info("Redis Connected")
			snapshotCache = cache.NewRedisAuctionCache(rdb, 30*time.Second, logger)
		}
	}

	// 5. Auth
	publicKeyPEM, err := os.ReadFile(cfg.JWTPublicKeyFile)
	if err != nil {
		logger.Error("Unable to read JWT public key", "error", err)
		os.Exit(1)
	}
	signer, err := auth.NewSignerFromPublicKey(publicKeyPEM, cfg.JWTIssuer)
	if err != nil {
		logger.Error("Unable to create token verifier", "error", err)
		os.Exit(1)
	}

	// 6. Repositories and domain services
	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.LockTimeout)
	auctionRepo := adapterdb.NewPostgresAuctionRepository(pool)
	tokenRepo := adapterdb.NewPostgresTokenRepository(pool)
	outboxRepo := adapterdb.NewPostgresOutboxRepository(pool)

	custodian := token.NewService(txManager, tokenRepo, auctionRepo, cfg.MintFee)
	registry := auction.NewRegistry(
		txManager,
		auctionRepo,
		custodian,
		outboxRepo,
		snapshotCache,
		auction.Fees{CreateAuction: cfg.CreateAuctionFee, Enroll: cfg.EnrollFee},
		cfg.MarketplaceAccount,
	)

	// 7. HTTP API
	handler := api.NewHandler(registry, custodian, logger)
	apiMux := http.NewServeMux()
	handler.Register(apiMux)

	mux := http.NewServeMux()
	mux.Handle("/v1/", auth.Middleware(signer)(apiMux))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	// 8. Embedded outbox relay
	relay := pkgevents.NewOutboxRelay(
		outboxRepo,
		payoutPublisher,
		txManager,
		cfg.RelayBatchSize,
		cfg.RelayInterval,
		adapterevents.PayoutExchange,
		logger,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting Outbox Relay...")
		return relay.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("Starting Marketplace API", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}
