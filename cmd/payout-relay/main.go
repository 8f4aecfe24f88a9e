package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"

	adapterdb "github.com/tokenhaus/marketplace/internal/adapters/database"
	adapterevents "github.com/tokenhaus/marketplace/internal/adapters/events"
	"github.com/tokenhaus/marketplace/internal/config"
	pkgdb "github.com/tokenhaus/marketplace/pkg/database"
	pkgevents "github.com/tokenhaus/marketplace/pkg/events"
)

// Standalone outbox relay, for deployments where the API server should not
// publish payout commands itself.
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	if err := pool.Ping(ctx); err != nil {
		logger.Error("Unable to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

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

	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.LockTimeout)
	outboxRepo := adapterdb.NewPostgresOutboxRepository(pool)

	relay := pkgevents.NewOutboxRelay(
		outboxRepo,
		payoutPublisher,
		txManager,
		cfg.RelayBatchSize,
		cfg.RelayInterval,
		adapterevents.PayoutExchange,
		logger,
	)

	logger.Info("Starting Payout Relay Worker...")
	if err := relay.Run(ctx); err != nil {
		logger.Error("Relay failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}
