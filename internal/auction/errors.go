package auction

import "fmt"

// Registry errors. Every error is fatal to the current call: the whole
// operation rolls back and no partial state change is retained.
var (
	ErrAuctionNotFound   = fmt.Errorf("auction does not exist")
	ErrNotOwner          = fmt.Errorf("caller is not the owner of this auction")
	ErrNotTokenOwner     = fmt.Errorf("caller is not the owner of the token")
	ErrAlreadyAuctioned  = fmt.Errorf("token is already in an open auction")
	ErrInvalidFee        = fmt.Errorf("attached deposit must equal the configured fee exactly")
	ErrInvalidTimeRange  = fmt.Errorf("auction start time must precede end time, and end time must be in the future")
	ErrStartPriceTooLow  = fmt.Errorf("start price must be at least the enrollment fee")
	ErrAuctionNotStarted = fmt.Errorf("auction has not started")
	ErrAuctionEnded      = fmt.Errorf("auction has already ended")
	ErrAuctionNotEnded   = fmt.Errorf("auction is not over yet")
	ErrBidTooLow         = fmt.Errorf("bid must be strictly greater than the current price")
	ErrNotWinner         = fmt.Errorf("caller is not the winner of this auction")
	ErrAlreadyClaimed    = fmt.Errorf("already claimed")
	ErrNoBidder          = fmt.Errorf("auction received no bids")
	ErrHasBidder         = fmt.Errorf("auction received bids; the token belongs to the winner")
)
