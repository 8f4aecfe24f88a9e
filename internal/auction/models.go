package auction

import (
	"time"

	"github.com/google/uuid"
)

// Auction is one escrow round over exactly one token. Rows are never
// deleted: a settled auction remains as a historical record.
type Auction struct {
	ID           int64      `json:"id"`
	Owner        string     `json:"owner"`
	TokenID      string     `json:"token_id"`
	StartPrice   int64      `json:"start_price"` // in base currency units
	CurrentPrice int64      `json:"current_price"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	Winner       *string    `json:"winner,omitempty"` // nil until the first valid bid
	FundsClaimed bool       `json:"funds_claimed"`
	TokenClaimed bool       `json:"token_claimed"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Phase is the time-derived state of an auction.
type Phase string

const (
	PhaseCreated Phase = "created"
	PhaseOpen    Phase = "open"
	PhaseEnded   Phase = "ended"
)

// PhaseAt reports the auction's phase at the given instant. The bidding
// window is open strictly after StartTime and strictly before EndTime.
func (a *Auction) PhaseAt(now time.Time) Phase {
	switch {
	case !now.After(a.StartTime):
		return PhaseCreated
	case now.Before(a.EndTime):
		return PhaseOpen
	default:
		return PhaseEnded
	}
}

// Settled reports whether both disbursements are complete. For an auction
// with no bids only the token path applies, so funds are never disbursed.
func (a *Auction) Settled() bool {
	if a.Winner == nil {
		return a.TokenClaimed
	}
	return a.FundsClaimed && a.TokenClaimed
}

// CreateAuctionCommand carries the caller's request to open an auction.
// AttachedDeposit is the value attached to the call, validated exact-match
// against the creation fee.
type CreateAuctionCommand struct {
	Caller          string
	TokenID         string
	StartPrice      int64
	StartTime       time.Time
	EndTime         time.Time
	AttachedDeposit int64
}

// PlaceBidCommand carries a bid. AttachedDeposit is both the bid amount and
// the escrowed value.
type PlaceBidCommand struct {
	AuctionID       int64
	Caller          string
	AttachedDeposit int64
}

// ClaimCommand identifies the auction for one of the three claim paths.
type ClaimCommand struct {
	AuctionID int64
	Caller    string
}

// Payout reasons double as outbox event types and broker routing keys.
const (
	PayoutReasonOutbidRefund = "payout.refund"
	PayoutReasonProceeds     = "payout.proceeds"
)

// PayoutCommand is the fire-and-forget value transfer handed to the ledger.
// The command commits in the same transaction as the state change that
// produced it; PayoutID makes downstream execution idempotent under
// at-least-once delivery.
type PayoutCommand struct {
	PayoutID  uuid.UUID `json:"payout_id"`
	AuctionID int64     `json:"auction_id"`
	Recipient string    `json:"recipient"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
