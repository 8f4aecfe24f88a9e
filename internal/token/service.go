package token

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tokenhaus/marketplace/pkg/database"
)

// Service errors
var (
	ErrTokenNotFound = fmt.Errorf("token does not exist")
	ErrTokenExists   = fmt.Errorf("token id is already minted")
	ErrNotTokenOwner = fmt.Errorf("caller is not the owner of the token")
	ErrTokenEscrowed = fmt.Errorf("token is held in escrow by an open auction")
	ErrInvalidFee    = fmt.Errorf("attached deposit must equal the mint fee exactly")
)

// Service is the token custodian: the service of record for ownership. The
// auction registry consumes its transactional methods; the HTTP API exposes
// Mint, TransferToken and GetToken.
type Service struct {
	txManager database.TransactionManager
	repo      Repository
	escrow    EscrowChecker
	mintFee   int64
}

// NewService creates a new custodian service.
func NewService(txManager database.TransactionManager, repo Repository, escrow EscrowChecker, mintFee int64) *Service {
	return &Service{
		txManager: txManager,
		repo:      repo,
		escrow:    escrow,
		mintFee:   mintFee,
	}
}

// Mint registers a new token under the given owner.
func (s *Service) Mint(ctx context.Context, cmd MintCommand) (*Token, error) {
	if cmd.AttachedDeposit != s.mintFee {
		return nil, ErrInvalidFee
	}

	t := &Token{
		ID:        cmd.TokenID,
		Owner:     cmd.Owner,
		Metadata:  cmd.Metadata,
		CreatedAt: time.Now(),
	}

	if err := s.repo.Insert(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// GetToken retrieves a token by id.
func (s *Service) GetToken(ctx context.Context, id string) (*Token, error) {
	return s.repo.Get(ctx, id)
}

// TransferToken is the public, authorization-checked transfer. Tokens held
// in escrow cannot be moved out from under their auction.
func (s *Service) TransferToken(ctx context.Context, cmd TransferCommand) (*Token, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	escrowed, err := s.escrow.IsTokenEscrowed(ctx, tx, cmd.TokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to check escrow set: %w", err)
	}
	if escrowed {
		return nil, ErrTokenEscrowed
	}

	if err := s.Transfer(ctx, tx, cmd.Caller, cmd.To, cmd.TokenID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	t, err := s.repo.Get(ctx, cmd.TokenID)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// OwnerOf reports the current owner, locking the token row for the
// duration of the transaction.
func (s *Service) OwnerOf(ctx context.Context, tx pgx.Tx, tokenID string) (string, error) {
	t, err := s.repo.GetForUpdate(ctx, tx, tokenID)
	if err != nil {
		return "", err
	}
	return t.Owner, nil
}

// Transfer moves a token after verifying that from is the current owner.
func (s *Service) Transfer(ctx context.Context, tx pgx.Tx, from, to, tokenID string) error {
	t, err := s.repo.GetForUpdate(ctx, tx, tokenID)
	if err != nil {
		return err
	}
	if t.Owner != from {
		return ErrNotTokenOwner
	}
	return s.repo.UpdateOwner(ctx, tx, tokenID, to)
}

// TransferUnchecked moves a token without an authorization check. Internal
// only: the caller must already have verified that from holds custody.
func (s *Service) TransferUnchecked(ctx context.Context, tx pgx.Tx, tokenID, from, to string) error {
	return s.repo.UpdateOwner(ctx, tx, tokenID, to)
}
