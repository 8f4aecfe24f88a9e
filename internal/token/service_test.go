package token

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMintFee = int64(500)

type fakeTx struct {
	pgx.Tx
}

func (fakeTx) Commit(ctx context.Context) error   { return nil }
func (fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeTxManager struct{}

func (fakeTxManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return fakeTx{}, nil
}

type fakeRepo struct {
	tokens map[string]*Token
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{tokens: make(map[string]*Token)}
}

func (r *fakeRepo) Insert(ctx context.Context, t *Token) error {
	if _, ok := r.tokens[t.ID]; ok {
		return ErrTokenExists
	}
	c := *t
	r.tokens[t.ID] = &c
	return nil
}

func (r *fakeRepo) Get(ctx context.Context, id string) (*Token, error) {
	t, ok := r.tokens[id]
	if !ok {
		return nil, ErrTokenNotFound
	}
	c := *t
	return &c, nil
}

func (r *fakeRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*Token, error) {
	return r.Get(ctx, id)
}

func (r *fakeRepo) UpdateOwner(ctx context.Context, tx pgx.Tx, id, owner string) error {
	t, ok := r.tokens[id]
	if !ok {
		return ErrTokenNotFound
	}
	t.Owner = owner
	return nil
}

type fakeEscrow struct {
	escrowed map[string]bool
}

func (e *fakeEscrow) IsTokenEscrowed(ctx context.Context, tx pgx.Tx, tokenID string) (bool, error) {
	return e.escrowed[tokenID], nil
}

func newTestService() (*Service, *fakeRepo, *fakeEscrow) {
	repo := newFakeRepo()
	escrow := &fakeEscrow{escrowed: make(map[string]bool)}
	return NewService(fakeTxManager{}, repo, escrow, testMintFee), repo, escrow
}

func TestMint(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		svc, _, _ := newTestService()

		got, err := svc.Mint(ctx, MintCommand{
			TokenID:         "token-1",
			Owner:           "alice",
			Metadata:        json.RawMessage(`{"name":"First"}`),
			AttachedDeposit: testMintFee,
		})
		require.NoError(t, err)
		assert.Equal(t, "token-1", got.ID)
		assert.Equal(t, "alice", got.Owner)

		stored, err := svc.GetToken(ctx, "token-1")
		require.NoError(t, err)
		assert.Equal(t, "alice", stored.Owner)
	})

	t.Run("fee must match exactly", func(t *testing.T) {
		svc, _, _ := newTestService()

		for _, deposit := range []int64{0, testMintFee - 1, testMintFee + 1} {
			_, err := svc.Mint(ctx, MintCommand{TokenID: "token-1", Owner: "alice", AttachedDeposit: deposit})
			assert.ErrorIs(t, err, ErrInvalidFee)
		}
	})

	t.Run("duplicate id", func(t *testing.T) {
		svc, _, _ := newTestService()

		_, err := svc.Mint(ctx, MintCommand{TokenID: "token-1", Owner: "alice", AttachedDeposit: testMintFee})
		require.NoError(t, err)

		_, err = svc.Mint(ctx, MintCommand{TokenID: "token-1", Owner: "bob", AttachedDeposit: testMintFee})
		assert.ErrorIs(t, err, ErrTokenExists)
	})
}

func TestGetToken(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.GetToken(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestTransferToken(t *testing.T) {
	ctx := context.Background()

	mint := func(t *testing.T, svc *Service, id, owner string) {
		t.Helper()
		_, err := svc.Mint(ctx, MintCommand{TokenID: id, Owner: owner, AttachedDeposit: testMintFee})
		require.NoError(t, err)
	}

	t.Run("owner moves the token", func(t *testing.T) {
		svc, _, _ := newTestService()
		mint(t, svc, "token-1", "alice")

		got, err := svc.TransferToken(ctx, TransferCommand{Caller: "alice", To: "bob", TokenID: "token-1"})
		require.NoError(t, err)
		assert.Equal(t, "bob", got.Owner)
	})

	t.Run("only the owner", func(t *testing.T) {
		svc, _, _ := newTestService()
		mint(t, svc, "token-1", "alice")

		_, err := svc.TransferToken(ctx, TransferCommand{Caller: "bob", To: "carol", TokenID: "token-1"})
		assert.ErrorIs(t, err, ErrNotTokenOwner)

		stored, _ := svc.GetToken(ctx, "token-1")
		assert.Equal(t, "alice", stored.Owner)
	})

	t.Run("escrowed tokens are frozen", func(t *testing.T) {
		svc, _, escrow := newTestService()
		mint(t, svc, "token-1", "alice")
		escrow.escrowed["token-1"] = true

		_, err := svc.TransferToken(ctx, TransferCommand{Caller: "alice", To: "bob", TokenID: "token-1"})
		assert.ErrorIs(t, err, ErrTokenEscrowed)

		stored, _ := svc.GetToken(ctx, "token-1")
		assert.Equal(t, "alice", stored.Owner)
	})

	t.Run("unknown token", func(t *testing.T) {
		svc, _, _ := newTestService()

		_, err := svc.TransferToken(ctx, TransferCommand{Caller: "alice", To: "bob", TokenID: "missing"})
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})
}

func TestCustodianTransfers(t *testing.T) {
	ctx := context.Background()

	t.Run("OwnerOf", func(t *testing.T) {
		svc, _, _ := newTestService()
		_, err := svc.Mint(ctx, MintCommand{TokenID: "token-1", Owner: "alice", AttachedDeposit: testMintFee})
		require.NoError(t, err)

		owner, err := svc.OwnerOf(ctx, nil, "token-1")
		require.NoError(t, err)
		assert.Equal(t, "alice", owner)

		_, err = svc.OwnerOf(ctx, nil, "missing")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("Transfer verifies the sender", func(t *testing.T) {
		svc, _, _ := newTestService()
		_, err := svc.Mint(ctx, MintCommand{TokenID: "token-1", Owner: "alice", AttachedDeposit: testMintFee})
		require.NoError(t, err)

		err = svc.Transfer(ctx, nil, "bob", "carol", "token-1")
		assert.ErrorIs(t, err, ErrNotTokenOwner)

		require.NoError(t, svc.Transfer(ctx, nil, "alice", "bob", "token-1"))
		owner, _ := svc.OwnerOf(ctx, nil, "token-1")
		assert.Equal(t, "bob", owner)
	})

	t.Run("TransferUnchecked moves regardless of sender", func(t *testing.T) {
		svc, _, _ := newTestService()
		_, err := svc.Mint(ctx, MintCommand{TokenID: "token-1", Owner: "alice", AttachedDeposit: testMintFee})
		require.NoError(t, err)

		require.NoError(t, svc.TransferUnchecked(ctx, nil, "token-1", "whoever", "bob"))
		owner, _ := svc.OwnerOf(ctx, nil, "token-1")
		assert.Equal(t, "bob", owner)
	})
}
