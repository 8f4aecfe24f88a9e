package token

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Repository persists the token ownership register.
type Repository interface {
	// Insert stores a new token; fails with ErrTokenExists on a duplicate id.
	Insert(ctx context.Context, t *Token) error

	// Get retrieves a token (non-transactional read).
	Get(ctx context.Context, id string) (*Token, error)

	// GetForUpdate retrieves a token and locks its row for the duration of
	// the transaction.
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*Token, error)

	// UpdateOwner rewrites the ownership record.
	UpdateOwner(ctx context.Context, tx pgx.Tx, id, owner string) error
}

// EscrowChecker reports whether a token is currently held in an open
// auction. Direct transfers of escrowed tokens are refused.
type EscrowChecker interface {
	IsTokenEscrowed(ctx context.Context, tx pgx.Tx, tokenID string) (bool, error)
}
