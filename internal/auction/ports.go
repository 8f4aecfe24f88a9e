package auction

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/tokenhaus/marketplace/pkg/events"
)

// AuctionRepository is the authoritative store for auctions and the escrow
// index. Mutating methods must be called within a transaction.
type AuctionRepository interface {
	// Insert stores a new auction and fills in its allocated id. Ids are
	// monotonically assigned by the store and never reused.
	Insert(ctx context.Context, tx pgx.Tx, a *Auction) error

	// GetByID retrieves an auction (non-transactional read).
	GetByID(ctx context.Context, id int64) (*Auction, error)

	// GetByIDForUpdate retrieves an auction and locks its row, serializing
	// all operations on the same auction.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*Auction, error)

	// Update persists the mutable fields of an auction.
	Update(ctx context.Context, tx pgx.Tx, a *Auction) error

	// ListByOwner returns the owner's auctions in creation order.
	ListByOwner(ctx context.Context, owner string) ([]*Auction, error)

	// IsTokenEscrowed reports membership in the escrow set.
	IsTokenEscrowed(ctx context.Context, tx pgx.Tx, tokenID string) (bool, error)

	// MarkTokenEscrowed adds a token to the escrow set.
	MarkTokenEscrowed(ctx context.Context, tx pgx.Tx, tokenID string, auctionID int64) error

	// ClearTokenEscrow removes a token from the escrow set.
	ClearTokenEscrow(ctx context.Context, tx pgx.Tx, tokenID string) error
}

// TokenCustodian is the service of record for token ownership. Transfer
// performs the authorization-checked move; TransferUnchecked skips the
// check and is used only once the registry has verified it holds custody.
type TokenCustodian interface {
	OwnerOf(ctx context.Context, tx pgx.Tx, tokenID string) (string, error)
	Transfer(ctx context.Context, tx pgx.Tx, from, to, tokenID string) error
	TransferUnchecked(ctx context.Context, tx pgx.Tx, tokenID, from, to string) error
}

// OutboxRepository persists outbound value-transfer requests within the
// operation's transaction.
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}

// SnapshotCache is an optional read cache for auction snapshots. Lookups
// that miss or fail report ok=false; implementations swallow and log their
// own errors so a cache outage never fails a registry call.
type SnapshotCache interface {
	Get(ctx context.Context, id int64) (*Auction, bool)
	Set(ctx context.Context, a *Auction)
	Invalidate(ctx context.Context, id int64)
}
