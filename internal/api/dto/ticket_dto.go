package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/maintenance-escrow/internal/domain"
)

// OpenTicketRequest payload.
type OpenTicketRequest struct {
	ContractID  string  `json:"contract_id"`
	OwnerID     string  `json:"owner_id"`
	PropertyID  *string `json:"property_id,omitempty"`
	Service     string  `json:"service"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
}

// QuoteRequest payload.
type QuoteRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Note     string          `json:"note,omitempty"`
}

// ApproveRequest payload.
type ApproveRequest struct {
	PayerRef string `json:"payer_ref"`
}

// ExtraRequest payload.
type ExtraRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// DecideExtraRequest payload.
type DecideExtraRequest struct {
	Approve bool `json:"approve"`
}

// ScheduleRequest payload.
type ScheduleRequest struct {
	Slot time.Time `json:"slot"`
}

// CompleteRequest payload.
type CompleteRequest struct {
	InvoiceURL *string `json:"invoice_url,omitempty"`
}

// DisputeRequest payload.
type DisputeRequest struct {
	Reason string `json:"reason"`
}

// QuoteResponse mirrors the active quote.
type QuoteResponse struct {
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	ProID       string    `json:"pro_id"`
	Note        string    `json:"note,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ExtraResponse mirrors the latest extra request.
type ExtraResponse struct {
	Amount      string             `json:"amount"`
	Reason      string             `json:"reason"`
	Status      domain.ExtraStatus `json:"status"`
	RequestedAt time.Time          `json:"requested_at"`
	DecidedAt   *time.Time         `json:"decided_at,omitempty"`
}

// AppointmentResponse mirrors the scheduling sub-flow.
type AppointmentResponse struct {
	Slot        time.Time  `json:"slot"`
	ProposedAt  time.Time  `json:"proposed_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// HistoryEntryResponse is one audit trail entry.
type HistoryEntryResponse struct {
	Timestamp time.Time      `json:"timestamp"`
	ActorID   string         `json:"actor_id"`
	ActorRole domain.Role    `json:"actor_role"`
	Action    domain.Action  `json:"action"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// TicketResponse provides full ticket info.
type TicketResponse struct {
	ID          string                 `json:"id"`
	ContractID  string                 `json:"contract_id"`
	PropertyID  *string                `json:"property_id,omitempty"`
	OpenedBy    string                 `json:"opened_by"`
	OwnerID     string                 `json:"owner_id"`
	ProID       *string                `json:"pro_id,omitempty"`
	Service     string                 `json:"service"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Status      domain.TicketStatus    `json:"status"`
	Quote       *QuoteResponse         `json:"quote,omitempty"`
	Extra       *ExtraResponse         `json:"extra,omitempty"`
	Appointment *AppointmentResponse   `json:"appointment,omitempty"`
	InvoiceURL  *string                `json:"invoice_url,omitempty"`
	EscrowID    *string                `json:"escrow_id,omitempty"`
	History     []HistoryEntryResponse `json:"history"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ClosedAt    *time.Time             `json:"closed_at,omitempty"`
}

// LedgerEntryResponse is one custody event.
type LedgerEntryResponse struct {
	Timestamp time.Time              `json:"timestamp"`
	Type      domain.LedgerEntryType `json:"type"`
	Payload   map[string]any         `json:"payload,omitempty"`
}

// EscrowResponse mirrors an escrow record.
type EscrowResponse struct {
	ID         string                `json:"id"`
	ContractID string                `json:"contract_id"`
	TicketID   string                `json:"ticket_id"`
	Amount     string                `json:"amount"`
	Currency   string                `json:"currency"`
	Status     domain.EscrowStatus   `json:"status"`
	Provider   string                `json:"provider"`
	PaymentRef string                `json:"payment_ref"`
	Ledger     []LedgerEntryResponse `json:"ledger"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// TicketEscrowResponse pairs a ticket with its escrow for money-moving
// endpoints.
type TicketEscrowResponse struct {
	Ticket TicketResponse `json:"ticket"`
	Escrow EscrowResponse `json:"escrow"`
}
