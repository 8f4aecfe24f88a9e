package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tokenhaus/marketplace/internal/auction"
)

const payoutQueue = "marketplace_payouts"

// PayoutExecutor performs (or forwards) an actual fund transfer. Delivery
// is at-least-once, so implementations must deduplicate on PayoutID.
type PayoutExecutor interface {
	Execute(ctx context.Context, cmd auction.PayoutCommand) error
}

// PayoutConsumer consumes payout commands from the broker and hands them
// to the executor. It stands in for the external ledger that settles fund
// transfers asynchronously.
type PayoutConsumer struct {
	conn     *amqp.Connection
	executor PayoutExecutor
	logger   *slog.Logger
}

// NewPayoutConsumer creates a new payout consumer
func NewPayoutConsumer(conn *amqp.Connection, executor PayoutExecutor, logger *slog.Logger) *PayoutConsumer {
	return &PayoutConsumer{
		conn:     conn,
		executor: executor,
		logger:   logger,
	}
}

// Run starts the consumer loop and blocks until ctx is cancelled.
func (c *PayoutConsumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if setupErr := c.setupRabbitMQ(ch); setupErr != nil {
		return fmt.Errorf("failed to setup rabbitmq: %w", setupErr)
	}

	msgs, err := ch.Consume(
		payoutQueue, // queue
		"",          // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Waiting for payout commands...")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("channel closed")
			}

			var cmd auction.PayoutCommand
			if err := json.Unmarshal(d.Body, &cmd); err != nil {
				c.logger.Error("Failed to unmarshal payout command", "error", err)
				// Unparseable now means unparseable forever; drop it.
				if nackErr := d.Nack(false, false); nackErr != nil {
					c.logger.Error("Failed to Nack message", "error", nackErr)
				}
				continue
			}

			if err := c.executor.Execute(ctx, cmd); err != nil {
				c.logger.Error("Failed to execute payout", "payout_id", cmd.PayoutID, "error", err)
				// Requeue and retry.
				if nackErr := d.Nack(false, true); nackErr != nil {
					c.logger.Error("Failed to Nack message (requeue)", "error", nackErr)
				}
			} else {
				if ackErr := d.Ack(false); ackErr != nil {
					c.logger.Error("Failed to Ack message", "error", ackErr)
				}
				c.logger.Info("Payout executed",
					"payout_id", cmd.PayoutID,
					"recipient", cmd.Recipient,
					"amount", cmd.Amount,
					"reason", cmd.Reason,
				)
			}
		}
	}
}

func (c *PayoutConsumer) setupRabbitMQ(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		PayoutExchange, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // args
	)
	if err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		payoutQueue, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return err
	}

	return ch.QueueBind(
		q.Name,         // queue name
		"payout.*",     // routing key
		PayoutExchange, // exchange
		false,
		nil,
	)
}
