package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	adapterevents "github.com/tokenhaus/marketplace/internal/adapters/events"
	"github.com/tokenhaus/marketplace/internal/auction"
	"github.com/tokenhaus/marketplace/internal/config"
)

// loggingExecutor stands in for the external ledger: it acknowledges payout
// commands and deduplicates on payout id, since delivery is at-least-once.
type loggingExecutor struct {
	logger *slog.Logger

	mu   sync.Mutex
	seen map[uuid.UUID]struct{}
}

func newLoggingExecutor(logger *slog.Logger) *loggingExecutor {
	return &loggingExecutor{
		logger: logger,
		seen:   make(map[uuid.UUID]struct{}),
	}
}

func (e *loggingExecutor) Execute(ctx context.Context, cmd auction.PayoutCommand) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, dup := e.seen[cmd.PayoutID]; dup {
		e.logger.Info("Skipping duplicate payout", "payout_id", cmd.PayoutID)
		return nil
	}
	e.seen[cmd.PayoutID] = struct{}{}

	e.logger.Info("Settling payout",
		"payout_id", cmd.PayoutID,
		"auction_id", cmd.AuctionID,
		"recipient", cmd.Recipient,
		"amount", cmd.Amount,
		"reason", cmd.Reason,
	)
	return nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Unable to load config", "error", err)
		os.Exit(1)
	}

	if cfg.RabbitURL == "" {
		logger.Error("RABBITMQ_URL is not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	amqpConn, err := amqp091.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	consumer := adapterevents.NewPayoutConsumer(amqpConn, newLoggingExecutor(logger), logger)

	logger.Info("Starting Payout Worker...")
	if err := consumer.Run(ctx); err != nil {
		logger.Error("Consumer failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}
