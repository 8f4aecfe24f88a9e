package events

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	committed  *bool
	rolledBack *bool
}

func (t fakeTx) Commit(ctx context.Context) error {
	*t.committed = true
	return nil
}

func (t fakeTx) Rollback(ctx context.Context) error {
	if !*t.committed {
		*t.rolledBack = true
	}
	return nil
}

type fakeTxManager struct {
	committed  bool
	rolledBack bool
}

func (m *fakeTxManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	m.committed = false
	m.rolledBack = false
	return fakeTx{committed: &m.committed, rolledBack: &m.rolledBack}, nil
}

type fakeOutboxRepo struct {
	pending  []*OutboxEvent
	statuses map[uuid.UUID]OutboxStatus
}

func newFakeOutboxRepo(events ...*OutboxEvent) *fakeOutboxRepo {
	return &fakeOutboxRepo{pending: events, statuses: make(map[uuid.UUID]OutboxStatus)}
}

func (r *fakeOutboxRepo) GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*OutboxEvent, error) {
	if limit > len(r.pending) {
		limit = len(r.pending)
	}
	return r.pending[:limit], nil
}

func (r *fakeOutboxRepo) UpdateEventStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status OutboxStatus) error {
	r.statuses[id] = status
	return nil
}

type published struct {
	exchange   string
	routingKey string
	body       []byte
}

type fakePublisher struct {
	published []published
	failOn    string
}

func (p *fakePublisher) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	if p.failOn != "" && routingKey == p.failOn {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, published{exchange, routingKey, body})
	return nil
}

func newTestRelay(repo *fakeOutboxRepo, pub *fakePublisher, txm *fakeTxManager) *OutboxRelay {
	return NewOutboxRelay(repo, pub, txm, 10, time.Millisecond, "test.exchange", slog.New(slog.DiscardHandler))
}

func pendingEvent(eventType string) *OutboxEvent {
	return &OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   []byte(`{"amount":100}`),
		Status:    OutboxStatusPending,
		CreatedAt: time.Now(),
	}
}

func TestProcessBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes pending events and marks them", func(t *testing.T) {
		e1 := pendingEvent("payout.refund")
		e2 := pendingEvent("payout.proceeds")
		repo := newFakeOutboxRepo(e1, e2)
		pub := &fakePublisher{}
		txm := &fakeTxManager{}

		err := newTestRelay(repo, pub, txm).processBatch(ctx)
		require.NoError(t, err)

		require.Len(t, pub.published, 2)
		assert.Equal(t, "test.exchange", pub.published[0].exchange)
		assert.Equal(t, "payout.refund", pub.published[0].routingKey)
		assert.Equal(t, "payout.proceeds", pub.published[1].routingKey)

		assert.Equal(t, OutboxStatusPublished, repo.statuses[e1.ID])
		assert.Equal(t, OutboxStatusPublished, repo.statuses[e2.ID])
		assert.True(t, txm.committed)
	})

	t.Run("empty outbox is a no-op", func(t *testing.T) {
		repo := newFakeOutboxRepo()
		pub := &fakePublisher{}
		txm := &fakeTxManager{}

		err := newTestRelay(repo, pub, txm).processBatch(ctx)
		require.NoError(t, err)
		assert.Empty(t, pub.published)
		assert.False(t, txm.committed)
	})

	t.Run("publish failure rolls the batch back", func(t *testing.T) {
		e1 := pendingEvent("payout.refund")
		e2 := pendingEvent("payout.proceeds")
		repo := newFakeOutboxRepo(e1, e2)
		pub := &fakePublisher{failOn: "payout.proceeds"}
		txm := &fakeTxManager{}

		err := newTestRelay(repo, pub, txm).processBatch(ctx)
		require.Error(t, err)

		assert.False(t, txm.committed)
		assert.True(t, txm.rolledBack)
		// the first event was published; redelivery is the consumer's problem
		assert.Len(t, pub.published, 1)
	})

	t.Run("respects the batch size", func(t *testing.T) {
		repo := newFakeOutboxRepo(
			pendingEvent("payout.refund"),
			pendingEvent("payout.refund"),
			pendingEvent("payout.refund"),
		)
		pub := &fakePublisher{}
		txm := &fakeTxManager{}

		relay := NewOutboxRelay(repo, pub, txm, 2, time.Millisecond, "test.exchange", slog.New(slog.DiscardHandler))
		err := relay.processBatch(ctx)
		require.NoError(t, err)
		assert.Len(t, pub.published, 2)
	})
}

func TestRunStopsOnContextCancel(t *testing.T) {
	repo := newFakeOutboxRepo()
	pub := &fakePublisher{}
	txm := &fakeTxManager{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- newTestRelay(repo, pub, txm).Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after context cancellation")
	}
}
