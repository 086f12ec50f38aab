package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TicketStatus enumerates lifecycle states for maintenance tickets.
type TicketStatus string

const (
	TicketStatusOpen               TicketStatus = "open"
	TicketStatusQuoted             TicketStatus = "quoted"
	TicketStatusInProgress         TicketStatus = "in_progress"
	TicketStatusAwaitingSchedule   TicketStatus = "awaiting_schedule"
	TicketStatusScheduled          TicketStatus = "scheduled"
	TicketStatusAwaitingValidation TicketStatus = "awaiting_validation"
	TicketStatusClosed             TicketStatus = "closed"
	TicketStatusDisputed           TicketStatus = "disputed"
)

// IsTerminal reports whether no further transition may leave the status.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusClosed || s == TicketStatusDisputed
}

// EscrowHeld reports whether the ticket's escrow must exist and be held
// while the ticket sits in this status.
func (s TicketStatus) EscrowHeld() bool {
	switch s {
	case TicketStatusInProgress, TicketStatusAwaitingSchedule, TicketStatusScheduled, TicketStatusAwaitingValidation:
		return true
	default:
		return false
	}
}

// Quote is the professional's price offer for the requested work.
type Quote struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ProID       string          `json:"pro_id"`
	Note        string          `json:"note,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// ExtraStatus enumerates decision states of an extra-cost request.
type ExtraStatus string

const (
	ExtraStatusPending  ExtraStatus = "pending"
	ExtraStatusApproved ExtraStatus = "approved"
	ExtraStatusRejected ExtraStatus = "rejected"
)

// Extra is a professional-initiated scope change increasing the settled
// amount beyond the original quote, subject to owner approval. A resolved
// extra stays on the ticket until a new request supersedes it.
type Extra struct {
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason"`
	Status      ExtraStatus     `json:"status"`
	RequestedAt time.Time       `json:"requested_at"`
	DecidedAt   *time.Time      `json:"decided_at,omitempty"`
}

// Appointment captures the companion scheduling sub-flow. It only moves the
// ticket between the scheduling sub-states and never touches escrow.
type Appointment struct {
	Slot        time.Time  `json:"slot"`
	ProposedAt  time.Time  `json:"proposed_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// Ticket is the aggregate for a maintenance/repair request and its full
// lifecycle record. Descriptive fields are immutable after creation; the
// ticket is never deleted, it reaches a terminal status and is retained.
type Ticket struct {
	ID          string
	ContractID  string
	PropertyID  *string
	OpenedBy    string
	OwnerID     string
	ProID       *string
	Service     string
	Title       string
	Description string
	Status      TicketStatus
	Quote       *Quote
	Extra       *Extra
	Appointment *Appointment
	InvoiceURL  *string
	EscrowID    *string
	History     []TicketEvent
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClosedAt    *time.Time
}

// SettlementAmount is the total to release: the quote amount plus the extra
// amount when the extra was approved.
func (t *Ticket) SettlementAmount() decimal.Decimal {
	if t.Quote == nil {
		return decimal.Zero
	}
	total := t.Quote.Amount
	if t.Extra != nil && t.Extra.Status == ExtraStatusApproved {
		total = total.Add(t.Extra.Amount)
	}
	return total
}

// HasPendingExtra reports whether an unresolved extra blocks a new request.
func (t *Ticket) HasPendingExtra() bool {
	return t.Extra != nil && t.Extra.Status == ExtraStatusPending
}
