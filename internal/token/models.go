package token

import (
	"encoding/json"
	"time"
)

// Token is an entry in the custodian's ownership register.
type Token struct {
	ID        string          `json:"id"`
	Owner     string          `json:"owner"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// MintCommand creates a new token. AttachedDeposit is validated exact-match
// against the mint fee.
type MintCommand struct {
	TokenID         string
	Owner           string
	Metadata        json.RawMessage
	AttachedDeposit int64
}

// TransferCommand moves a token between accounts through the public,
// authorization-checked path.
type TransferCommand struct {
	Caller  string
	To      string
	TokenID string
}
