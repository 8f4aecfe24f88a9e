package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tokenhaus/marketplace/internal/token"
	pkgdb "github.com/tokenhaus/marketplace/pkg/database"
)

const uniqueViolation = "23505"

// PostgresTokenRepository implements token.Repository using pgx
type PostgresTokenRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTokenRepository creates a new PostgreSQL token repository
func NewPostgresTokenRepository(pool *pgxpool.Pool) *PostgresTokenRepository {
	return &PostgresTokenRepository{pool: pool}
}

// Insert stores a new token
func (r *PostgresTokenRepository) Insert(ctx context.Context, t *token.Token) error {
	query := `
		INSERT INTO tokens (id, owner, metadata, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query, t.ID, t.Owner, t.Metadata, t.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return token.ErrTokenExists
		}
		return fmt.Errorf("failed to insert token: %w", err)
	}
	return nil
}

// Get retrieves a token by id (non-transactional read)
func (r *PostgresTokenRepository) Get(ctx context.Context, id string) (*token.Token, error) {
	return r.get(ctx, r.pool, id, false)
}

// GetForUpdate retrieves a token and locks its row
func (r *PostgresTokenRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*token.Token, error) {
	return r.get(ctx, tx, id, true)
}

func (r *PostgresTokenRepository) get(ctx context.Context, db pkgdb.DBTX, id string, forUpdate bool) (*token.Token, error) {
	query := `
		SELECT id, owner, metadata, created_at
		FROM tokens
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var t token.Token
	err := db.QueryRow(ctx, query, id).Scan(
		&t.ID,
		&t.Owner,
		&t.Metadata,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, token.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return &t, nil
}

// UpdateOwner rewrites the ownership record
func (r *PostgresTokenRepository) UpdateOwner(ctx context.Context, tx pgx.Tx, id, owner string) error {
	result, err := tx.Exec(ctx, `UPDATE tokens SET owner = $1 WHERE id = $2`, owner, id)
	if err != nil {
		return fmt.Errorf("failed to update token owner: %w", err)
	}
	if result.RowsAffected() == 0 {
		return token.ErrTokenNotFound
	}
	return nil
}
