package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EscrowStatus enumerates custody states. Both released and disputed are
// terminal; no transition ever leaves them.
type EscrowStatus string

const (
	EscrowStatusHeld     EscrowStatus = "held"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusDisputed EscrowStatus = "disputed"
)

// IsTerminal reports whether the escrow can no longer change status.
func (s EscrowStatus) IsTerminal() bool {
	return s == EscrowStatusReleased || s == EscrowStatusDisputed
}

// LedgerEntryType enumerates custody events.
type LedgerEntryType string

const (
	LedgerEntryHold    LedgerEntryType = "hold"
	LedgerEntryRelease LedgerEntryType = "release"
	LedgerEntryDispute LedgerEntryType = "dispute"
)

// LedgerEntry is one append-only custody event. The ledger is the
// authoritative record of where the money currently sits.
type LedgerEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Type      LedgerEntryType `json:"type"`
	Payload   map[string]any  `json:"payload,omitempty"`
}

// Escrow is the custody record for funds reserved against one active
// ticket. Amount and currency are fixed at hold time.
type Escrow struct {
	ID         string
	ContractID string
	TicketID   string
	Amount     decimal.Decimal
	Currency   string
	Status     EscrowStatus
	Provider   string
	PaymentRef string
	Ledger     []LedgerEntry
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
