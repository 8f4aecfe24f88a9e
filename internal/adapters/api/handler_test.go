package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tokenhaus/marketplace/internal/auction"
	"github.com/tokenhaus/marketplace/internal/token"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{auction.ErrAuctionNotFound, http.StatusNotFound},
		{token.ErrTokenNotFound, http.StatusNotFound},

		{auction.ErrNotOwner, http.StatusForbidden},
		{auction.ErrNotTokenOwner, http.StatusForbidden},
		{auction.ErrNotWinner, http.StatusForbidden},
		{token.ErrNotTokenOwner, http.StatusForbidden},

		{auction.ErrInvalidFee, http.StatusBadRequest},
		{auction.ErrInvalidTimeRange, http.StatusBadRequest},
		{auction.ErrStartPriceTooLow, http.StatusBadRequest},
		{token.ErrInvalidFee, http.StatusBadRequest},

		{auction.ErrAlreadyAuctioned, http.StatusConflict},
		{auction.ErrAlreadyClaimed, http.StatusConflict},
		{auction.ErrAuctionNotStarted, http.StatusConflict},
		{auction.ErrAuctionEnded, http.StatusConflict},
		{auction.ErrAuctionNotEnded, http.StatusConflict},
		{auction.ErrBidTooLow, http.StatusConflict},
		{auction.ErrNoBidder, http.StatusConflict},
		{auction.ErrHasBidder, http.StatusConflict},
		{token.ErrTokenExists, http.StatusConflict},
		{token.ErrTokenEscrowed, http.StatusConflict},

		{errors.New("driver: connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusForError(tt.err))
		})
	}
}

// wrapped errors must still map through errors.Is
func TestStatusForError_Wrapped(t *testing.T) {
	err := errors.Join(errors.New("placing bid"), auction.ErrBidTooLow)
	assert.Equal(t, http.StatusConflict, statusForError(err))
}

func TestRequestValidation(t *testing.T) {
	h := NewHandler(nil, nil, slog.New(slog.DiscardHandler))
	mux := http.NewServeMux()
	h.Register(mux)

	// all of these fail validation before any service is touched
	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"mint with malformed body", http.MethodPost, "/v1/tokens", "{not json"},
		{"mint without token id", http.MethodPost, "/v1/tokens", `{"attached_deposit":100}`},
		{"transfer without recipient", http.MethodPost, "/v1/tokens/token-1/transfer", `{}`},
		{"create auction with malformed body", http.MethodPost, "/v1/auctions", "{not json"},
		{"create auction without token id", http.MethodPost, "/v1/auctions", `{"start_price":100}`},
		{"create auction with bad start time", http.MethodPost, "/v1/auctions", `{"token_id":"t","start_time":"yesterday","end_time":"2026-03-02T12:00:00Z"}`},
		{"create auction with bad end time", http.MethodPost, "/v1/auctions", `{"token_id":"t","start_time":"2026-03-01T12:00:00Z","end_time":"soon"}`},
		{"get auction with bad id", http.MethodGet, "/v1/auctions/abc", ""},
		{"bid with bad auction id", http.MethodPost, "/v1/auctions/abc/bids", `{"attached_deposit":100}`},
		{"claim token with bad auction id", http.MethodPost, "/v1/auctions/abc/claims/token", ""},
		{"claim proceeds with bad auction id", http.MethodPost, "/v1/auctions/abc/claims/proceeds", ""},
		{"claim back with bad auction id", http.MethodPost, "/v1/auctions/abc/claims/token-return", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			mux.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}
