package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tokenhaus/marketplace/internal/auction"
	"github.com/tokenhaus/marketplace/internal/token"
	"github.com/tokenhaus/marketplace/pkg/auth"
)

// Handler exposes the auction registry and token custodian over HTTP JSON.
// Every route is registered behind the auth middleware, so the caller
// identity is always present in the request context.
type Handler struct {
	registry *auction.Registry
	tokens   *token.Service
	logger   *slog.Logger
}

// NewHandler creates a new API handler
func NewHandler(registry *auction.Registry, tokens *token.Service, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		tokens:   tokens,
		logger:   logger,
	}
}

// Register installs all marketplace routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/tokens", h.MintToken)
	mux.HandleFunc("GET /v1/tokens/{id}", h.GetToken)
	mux.HandleFunc("POST /v1/tokens/{id}/transfer", h.TransferToken)

	mux.HandleFunc("POST /v1/auctions", h.CreateAuction)
	mux.HandleFunc("GET /v1/auctions", h.ListAuctions)
	mux.HandleFunc("GET /v1/auctions/{id}", h.GetAuction)
	mux.HandleFunc("POST /v1/auctions/{id}/bids", h.PlaceBid)
	mux.HandleFunc("POST /v1/auctions/{id}/claims/token", h.ClaimToken)
	mux.HandleFunc("POST /v1/auctions/{id}/claims/proceeds", h.ClaimProceeds)
	mux.HandleFunc("POST /v1/auctions/{id}/claims/token-return", h.ClaimBackToken)
}

type mintTokenRequest struct {
	TokenID         string          `json:"token_id"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	AttachedDeposit int64           `json:"attached_deposit"`
}

// MintToken registers a new token owned by the caller.
func (h *Handler) MintToken(w http.ResponseWriter, r *http.Request) {
	var req mintTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TokenID == "" {
		writeError(w, http.StatusBadRequest, "token_id is required")
		return
	}

	t, err := h.tokens.Mint(r.Context(), token.MintCommand{
		TokenID:         req.TokenID,
		Owner:           auth.MustGetAccountID(r.Context()),
		Metadata:        req.Metadata,
		AttachedDeposit: req.AttachedDeposit,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, t)
}

// GetToken retrieves a token by id.
func (h *Handler) GetToken(w http.ResponseWriter, r *http.Request) {
	t, err := h.tokens.GetToken(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type transferTokenRequest struct {
	To string `json:"to"`
}

// TransferToken moves a caller-owned token to another account.
func (h *Handler) TransferToken(w http.ResponseWriter, r *http.Request) {
	var req transferTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.To == "" {
		writeError(w, http.StatusBadRequest, "to is required")
		return
	}

	t, err := h.tokens.TransferToken(r.Context(), token.TransferCommand{
		Caller:  auth.MustGetAccountID(r.Context()),
		To:      req.To,
		TokenID: r.PathValue("id"),
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

type createAuctionRequest struct {
	TokenID         string `json:"token_id"`
	StartPrice      int64  `json:"start_price"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	AttachedDeposit int64  `json:"attached_deposit"`
}

// CreateAuction escrows the caller's token and opens a bidding round.
func (h *Handler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	var req createAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TokenID == "" {
		writeError(w, http.StatusBadRequest, "token_id is required")
		return
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_time format")
		return
	}
	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_time format")
		return
	}

	a, err := h.registry.CreateAuction(r.Context(), auction.CreateAuctionCommand{
		Caller:          auth.MustGetAccountID(r.Context()),
		TokenID:         req.TokenID,
		StartPrice:      req.StartPrice,
		StartTime:       startTime,
		EndTime:         endTime,
		AttachedDeposit: req.AttachedDeposit,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, a)
}

// GetAuction retrieves an auction snapshot by id.
func (h *Handler) GetAuction(w http.ResponseWriter, r *http.Request) {
	id, err := parseAuctionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid auction id")
		return
	}

	a, err := h.registry.GetAuction(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ListAuctions lists an owner's auctions in creation order.
func (h *Handler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		owner = auth.MustGetAccountID(r.Context())
	}

	auctions, err := h.registry.ListOwnerAuctions(r.Context(), owner)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if auctions == nil {
		auctions = []*auction.Auction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"auctions": auctions})
}

type placeBidRequest struct {
	AttachedDeposit int64 `json:"attached_deposit"`
}

// PlaceBid places a bid; the attached deposit is the bid amount.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	id, err := parseAuctionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid auction id")
		return
	}

	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.registry.PlaceBid(r.Context(), auction.PlaceBidCommand{
		AuctionID:       id,
		Caller:          auth.MustGetAccountID(r.Context()),
		AttachedDeposit: req.AttachedDeposit,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ClaimToken lets the winner collect the escrowed token.
func (h *Handler) ClaimToken(w http.ResponseWriter, r *http.Request) {
	h.claim(w, r, h.registry.ClaimToken)
}

// ClaimProceeds lets the seller collect the winning bid.
func (h *Handler) ClaimProceeds(w http.ResponseWriter, r *http.Request) {
	h.claim(w, r, h.registry.ClaimProceeds)
}

// ClaimBackToken returns an unsold token to the seller.
func (h *Handler) ClaimBackToken(w http.ResponseWriter, r *http.Request) {
	h.claim(w, r, h.registry.ClaimBackToken)
}

func (h *Handler) claim(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, cmd auction.ClaimCommand) (*auction.Auction, error)) {
	id, err := parseAuctionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid auction id")
		return
	}

	a, err := op(r.Context(), auction.ClaimCommand{
		AuctionID: id,
		Caller:    auth.MustGetAccountID(r.Context()),
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func parseAuctionID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// writeDomainError maps domain sentinels onto HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, auction.ErrAuctionNotFound),
		errors.Is(err, token.ErrTokenNotFound):
		return http.StatusNotFound
	case errors.Is(err, auction.ErrNotOwner),
		errors.Is(err, auction.ErrNotTokenOwner),
		errors.Is(err, auction.ErrNotWinner),
		errors.Is(err, token.ErrNotTokenOwner):
		return http.StatusForbidden
	case errors.Is(err, auction.ErrInvalidFee),
		errors.Is(err, auction.ErrInvalidTimeRange),
		errors.Is(err, auction.ErrStartPriceTooLow),
		errors.Is(err, token.ErrInvalidFee):
		return http.StatusBadRequest
	case errors.Is(err, auction.ErrAlreadyAuctioned),
		errors.Is(err, auction.ErrAlreadyClaimed),
		errors.Is(err, auction.ErrAuctionNotStarted),
		errors.Is(err, auction.ErrAuctionEnded),
		errors.Is(err, auction.ErrAuctionNotEnded),
		errors.Is(err, auction.ErrBidTooLow),
		errors.Is(err, auction.ErrNoBidder),
		errors.Is(err, auction.ErrHasBidder),
		errors.Is(err, token.ErrTokenExists),
		errors.Is(err, token.ErrTokenEscrowed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
