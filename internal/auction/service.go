package auction

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tokenhaus/marketplace/pkg/database"
	"github.com/tokenhaus/marketplace/pkg/events"
)

// Fees are the fixed marketplace fees, validated exact-match.
type Fees struct {
	CreateAuction int64
	Enroll        int64
}

// validateCreationFee checks the deposit attached to create_auction.
// Exact match is required, not a minimum.
func validateCreationFee(attached, fee int64) error {
	if attached != fee {
		return ErrInvalidFee
	}
	return nil
}

// validateTimeRange rejects inverted and already-expired auction windows.
func validateTimeRange(startTime, endTime, now time.Time) error {
	if !startTime.Before(endTime) || !endTime.After(now) {
		return ErrInvalidTimeRange
	}
	return nil
}

// validateStartPrice keeps the outbid refund (current price minus the
// enrollment fee) non-negative: prices only ever rise from the start price,
// so flooring the start price at the fee floors every refund at zero.
func validateStartPrice(startPrice, enrollFee int64) error {
	if startPrice < enrollFee {
		return ErrStartPriceTooLow
	}
	return nil
}

// validateBidWindow checks that the bidding window is strictly open: after
// the start and before the end.
func validateBidWindow(a *Auction, now time.Time) error {
	if !now.After(a.StartTime) {
		return ErrAuctionNotStarted
	}
	if !now.Before(a.EndTime) {
		return ErrAuctionEnded
	}
	return nil
}

// validateBidAmount checks that the attached deposit strictly exceeds the
// current price.
func validateBidAmount(attached, currentPrice int64) error {
	if attached <= currentPrice {
		return ErrBidTooLow
	}
	return nil
}

// validateEnded checks that the auction is strictly past its end time.
func validateEnded(a *Auction, now time.Time) error {
	if !now.After(a.EndTime) {
		return ErrAuctionNotEnded
	}
	return nil
}

// Registry drives every auction through its lifecycle: creation, bidding,
// and the three claim paths. Each operation runs in a single transaction
// with a row lock on the auction, so state mutations and the value-transfer
// requests they produce commit or roll back together.
type Registry struct {
	txManager database.TransactionManager
	auctions  AuctionRepository
	custodian TokenCustodian
	outbox    OutboxRepository
	cache     SnapshotCache
	fees      Fees

	// account holding custody of escrowed tokens
	account string
}

// NewRegistry creates the marketplace auction registry.
func NewRegistry(
	txManager database.TransactionManager,
	auctions AuctionRepository,
	custodian TokenCustodian,
	outbox OutboxRepository,
	cache SnapshotCache,
	fees Fees,
	marketplaceAccount string,
) *Registry {
	return &Registry{
		txManager: txManager,
		auctions:  auctions,
		custodian: custodian,
		outbox:    outbox,
		cache:     cache,
		fees:      fees,
		account:   marketplaceAccount,
	}
}

// CreateAuction escrows the caller's token and opens a bidding round.
// Custody of the token moves to the marketplace account via the
// authorization-checked custodian transfer.
func (r *Registry) CreateAuction(ctx context.Context, cmd CreateAuctionCommand) (*Auction, error) {
	if err := validateCreationFee(cmd.AttachedDeposit, r.fees.CreateAuction); err != nil {
		return nil, err
	}
	if err := validateTimeRange(cmd.StartTime, cmd.EndTime, time.Now()); err != nil {
		return nil, err
	}
	if err := validateStartPrice(cmd.StartPrice, r.fees.Enroll); err != nil {
		return nil, err
	}

	tx, err := r.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	owner, err := r.custodian.OwnerOf(ctx, tx, cmd.TokenID)
	if err != nil {
		return nil, err
	}
	if owner != cmd.Caller {
		return nil, ErrNotTokenOwner
	}

	escrowed, err := r.auctions.IsTokenEscrowed(ctx, tx, cmd.TokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to check escrow set: %w", err)
	}
	if escrowed {
		return nil, ErrAlreadyAuctioned
	}

	if err := r.custodian.Transfer(ctx, tx, cmd.Caller, r.account, cmd.TokenID); err != nil {
		return nil, fmt.Errorf("failed to escrow token: %w", err)
	}

	now := time.Now()
	a := &Auction{
		Owner:        owner,
		TokenID:      cmd.TokenID,
		StartPrice:   cmd.StartPrice,
		CurrentPrice: cmd.StartPrice,
		StartTime:    cmd.StartTime,
		EndTime:      cmd.EndTime,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := r.auctions.Insert(ctx, tx, a); err != nil {
		return nil, fmt.Errorf("failed to insert auction: %w", err)
	}
	if err := r.auctions.MarkTokenEscrowed(ctx, tx, cmd.TokenID, a.ID); err != nil {
		return nil, fmt.Errorf("failed to mark token escrowed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return a, nil
}

// PlaceBid records a higher bid and refunds the previous bidder, minus the
// enrollment fee. The fee is retained by the marketplace as the cost of
// having held the prior bidder's funds; every outbid bidder forfeits it.
func (r *Registry) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*Auction, error) {
	tx, err := r.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	a, err := r.auctions.GetByIDForUpdate(ctx, tx, cmd.AuctionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if valErr := validateBidWindow(a, now); valErr != nil {
		return nil, valErr
	}
	if valErr := validateBidAmount(cmd.AttachedDeposit, a.CurrentPrice); valErr != nil {
		return nil, valErr
	}

	if a.Winner != nil {
		refund := a.CurrentPrice - r.fees.Enroll
		if payErr := r.enqueuePayout(ctx, tx, a.ID, *a.Winner, refund, PayoutReasonOutbidRefund); payErr != nil {
			return nil, payErr
		}
	}

	caller := cmd.Caller
	a.Winner = &caller
	a.CurrentPrice = cmd.AttachedDeposit
	a.UpdatedAt = now

	if err := r.auctions.Update(ctx, tx, a); err != nil {
		return nil, fmt.Errorf("failed to update auction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.invalidate(ctx, a.ID)
	return a, nil
}

// ClaimToken moves the token out of escrow to the winner, exactly once.
// The unchecked custodian transfer is safe here: the registry itself has
// verified custody by construction of the escrow flow.
func (r *Registry) ClaimToken(ctx context.Context, cmd ClaimCommand) (*Auction, error) {
	tx, err := r.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	a, err := r.auctions.GetByIDForUpdate(ctx, tx, cmd.AuctionID)
	if err != nil {
		return nil, err
	}

	if valErr := validateEnded(a, time.Now()); valErr != nil {
		return nil, valErr
	}
	if a.Winner == nil || *a.Winner != cmd.Caller {
		return nil, ErrNotWinner
	}
	if a.TokenClaimed {
		return nil, ErrAlreadyClaimed
	}

	if err := r.custodian.TransferUnchecked(ctx, tx, a.TokenID, r.account, *a.Winner); err != nil {
		return nil, fmt.Errorf("failed to transfer token to winner: %w", err)
	}

	a.TokenClaimed = true
	a.UpdatedAt = time.Now()

	if err := r.auctions.Update(ctx, tx, a); err != nil {
		return nil, fmt.Errorf("failed to update auction: %w", err)
	}
	if err := r.auctions.ClearTokenEscrow(ctx, tx, a.TokenID); err != nil {
		return nil, fmt.Errorf("failed to clear escrow: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.invalidate(ctx, a.ID)
	return a, nil
}

// ClaimProceeds pays the full current price to the seller, exactly once.
// The payout is gross: the enrollment fees already retained from outbid
// bidders are the marketplace's, not the seller's.
func (r *Registry) ClaimProceeds(ctx context.Context, cmd ClaimCommand) (*Auction, error) {
	tx, err := r.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	a, err := r.auctions.GetByIDForUpdate(ctx, tx, cmd.AuctionID)
	if err != nil {
		return nil, err
	}

	if a.Owner != cmd.Caller {
		return nil, ErrNotOwner
	}
	if valErr := validateEnded(a, time.Now()); valErr != nil {
		return nil, valErr
	}
	if a.FundsClaimed {
		return nil, ErrAlreadyClaimed
	}
	if a.Winner == nil {
		// No bid was ever escrowed, so there are no proceeds to disburse.
		return nil, ErrNoBidder
	}

	if err := r.enqueuePayout(ctx, tx, a.ID, a.Owner, a.CurrentPrice, PayoutReasonProceeds); err != nil {
		return nil, err
	}

	a.FundsClaimed = true
	a.UpdatedAt = time.Now()

	if err := r.auctions.Update(ctx, tx, a); err != nil {
		return nil, fmt.Errorf("failed to update auction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.invalidate(ctx, a.ID)
	return a, nil
}

// ClaimBackToken returns the token to the seller when no bid was ever
// placed, exactly once.
func (r *Registry) ClaimBackToken(ctx context.Context, cmd ClaimCommand) (*Auction, error) {
	tx, err := r.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	a, err := r.auctions.GetByIDForUpdate(ctx, tx, cmd.AuctionID)
	if err != nil {
		return nil, err
	}

	if a.Owner != cmd.Caller {
		return nil, ErrNotOwner
	}
	if valErr := validateEnded(a, time.Now()); valErr != nil {
		return nil, valErr
	}
	if a.Winner != nil {
		return nil, ErrHasBidder
	}
	if a.TokenClaimed {
		return nil, ErrAlreadyClaimed
	}

	if err := r.custodian.TransferUnchecked(ctx, tx, a.TokenID, r.account, a.Owner); err != nil {
		return nil, fmt.Errorf("failed to return token: %w", err)
	}

	a.TokenClaimed = true
	a.UpdatedAt = time.Now()

	if err := r.auctions.Update(ctx, tx, a); err != nil {
		return nil, fmt.Errorf("failed to update auction: %w", err)
	}
	if err := r.auctions.ClearTokenEscrow(ctx, tx, a.TokenID); err != nil {
		return nil, fmt.Errorf("failed to clear escrow: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.invalidate(ctx, a.ID)
	return a, nil
}

// GetAuction returns a snapshot of an auction, served from the cache when
// possible.
func (r *Registry) GetAuction(ctx context.Context, id int64) (*Auction, error) {
	if r.cache != nil {
		if a, ok := r.cache.Get(ctx, id); ok {
			return a, nil
		}
	}

	a, err := r.auctions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		r.cache.Set(ctx, a)
	}
	return a, nil
}

// ListOwnerAuctions returns all auctions created by the owner, oldest
// first. Discovery only; the per-id lookup is authoritative.
func (r *Registry) ListOwnerAuctions(ctx context.Context, owner string) ([]*Auction, error) {
	return r.auctions.ListByOwner(ctx, owner)
}

// enqueuePayout records a fire-and-forget transfer request in the outbox,
// inside the caller's transaction.
func (r *Registry) enqueuePayout(ctx context.Context, tx pgx.Tx, auctionID int64, recipient string, amount int64, reason string) error {
	cmd := PayoutCommand{
		PayoutID:  uuid.New(),
		AuctionID: auctionID,
		Recipient: recipient,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: time.Now(),
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal payout command: %w", err)
	}

	event := &events.OutboxEvent{
		ID:        cmd.PayoutID,
		EventType: reason,
		Payload:   payload,
		Status:    events.OutboxStatusPending,
		CreatedAt: cmd.CreatedAt,
	}

	if err := r.outbox.SaveEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save payout command: %w", err)
	}
	return nil
}

func (r *Registry) invalidate(ctx context.Context, id int64) {
	if r.cache != nil {
		r.cache.Invalidate(ctx, id)
	}
}
