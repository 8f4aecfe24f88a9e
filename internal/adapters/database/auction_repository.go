package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tokenhaus/marketplace/internal/auction"
	pkgdb "github.com/tokenhaus/marketplace/pkg/database"
)

// PostgresAuctionRepository implements auction.AuctionRepository using pgx
type PostgresAuctionRepository struct {
	pool *pgxpool.Pool // kept for non-transactional reads
}

// NewPostgresAuctionRepository creates a new PostgreSQL auction repository
func NewPostgresAuctionRepository(pool *pgxpool.Pool) *PostgresAuctionRepository {
	return &PostgresAuctionRepository{pool: pool}
}

// Insert stores a new auction. The id is allocated by the database identity
// column, so it is monotonic and never reused even across rollbacks.
func (r *PostgresAuctionRepository) Insert(ctx context.Context, tx pgx.Tx, a *auction.Auction) error {
	query := `
		INSERT INTO auctions (owner, token_id, start_price, current_price, start_time, end_time, winner, funds_claimed, token_claimed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err := tx.QueryRow(ctx, query,
		a.Owner,
		a.TokenID,
		a.StartPrice,
		a.CurrentPrice,
		a.StartTime,
		a.EndTime,
		a.Winner,
		a.FundsClaimed,
		a.TokenClaimed,
		a.CreatedAt,
		a.UpdatedAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to insert auction: %w", err)
	}
	return nil
}

// GetByID retrieves an auction by its id (non-transactional read)
func (r *PostgresAuctionRepository) GetByID(ctx context.Context, id int64) (*auction.Auction, error) {
	return r.getByID(ctx, r.pool, id, false)
}

// GetByIDForUpdate retrieves an auction and locks its row. All registry
// operations on the same auction serialize on this lock.
func (r *PostgresAuctionRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*auction.Auction, error) {
	return r.getByID(ctx, tx, id, true)
}

// getByID is the internal implementation that works with any DBTX
func (r *PostgresAuctionRepository) getByID(ctx context.Context, db pkgdb.DBTX, id int64, forUpdate bool) (*auction.Auction, error) {
	query := `
		SELECT id, owner, token_id, start_price, current_price, start_time, end_time, winner, funds_claimed, token_claimed, created_at, updated_at
		FROM auctions
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var a auction.Auction
	err := db.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.Owner,
		&a.TokenID,
		&a.StartPrice,
		&a.CurrentPrice,
		&a.StartTime,
		&a.EndTime,
		&a.Winner,
		&a.FundsClaimed,
		&a.TokenClaimed,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auction.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return &a, nil
}

// Update persists the mutable fields of an auction
func (r *PostgresAuctionRepository) Update(ctx context.Context, tx pgx.Tx, a *auction.Auction) error {
	query := `
		UPDATE auctions
		SET current_price = $1, winner = $2, funds_claimed = $3, token_claimed = $4, updated_at = $5
		WHERE id = $6
	`
	result, err := tx.Exec(ctx, query,
		a.CurrentPrice,
		a.Winner,
		a.FundsClaimed,
		a.TokenClaimed,
		a.UpdatedAt,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auction.ErrAuctionNotFound
	}
	return nil
}

// ListByOwner returns an owner's auctions oldest first. Ids are monotonic,
// so id order is creation order.
func (r *PostgresAuctionRepository) ListByOwner(ctx context.Context, owner string) ([]*auction.Auction, error) {
	query := `
		SELECT id, owner, token_id, start_price, current_price, start_time, end_time, winner, funds_claimed, token_claimed, created_at, updated_at
		FROM auctions
		WHERE owner = $1
		ORDER BY id ASC
	`
	rows, err := r.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query auctions: %w", err)
	}
	defer rows.Close()

	var result []*auction.Auction
	for rows.Next() {
		var a auction.Auction
		if err := rows.Scan(
			&a.ID,
			&a.Owner,
			&a.TokenID,
			&a.StartPrice,
			&a.CurrentPrice,
			&a.StartTime,
			&a.EndTime,
			&a.Winner,
			&a.FundsClaimed,
			&a.TokenClaimed,
			&a.CreatedAt,
			&a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		result = append(result, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}

	return result, nil
}

// IsTokenEscrowed reports membership in the escrow set
func (r *PostgresAuctionRepository) IsTokenEscrowed(ctx context.Context, tx pgx.Tx, tokenID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM escrowed_tokens WHERE token_id = $1)`, tokenID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check escrow set: %w", err)
	}
	return exists, nil
}

// MarkTokenEscrowed adds a token to the escrow set. The primary key on
// token_id backs up the service-level AlreadyAuctioned check.
func (r *PostgresAuctionRepository) MarkTokenEscrowed(ctx context.Context, tx pgx.Tx, tokenID string, auctionID int64) error {
	_, err := tx.Exec(ctx, `INSERT INTO escrowed_tokens (token_id, auction_id) VALUES ($1, $2)`, tokenID, auctionID)
	if err != nil {
		return fmt.Errorf("failed to insert escrow row: %w", err)
	}
	return nil
}

// ClearTokenEscrow removes a token from the escrow set
func (r *PostgresAuctionRepository) ClearTokenEscrow(ctx context.Context, tx pgx.Tx, tokenID string) error {
	_, err := tx.Exec(ctx, `DELETE FROM escrowed_tokens WHERE token_id = $1`, tokenID)
	if err != nil {
		return fmt.Errorf("failed to delete escrow row: %w", err)
	}
	return nil
}
