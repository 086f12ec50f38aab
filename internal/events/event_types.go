package events

import (
	"time"

	"github.com/spec-kit/maintenance-escrow/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketOpened      EventType = "ticket_opened"
	EventQuoteSubmitted    EventType = "quote_submitted"
	EventEscrowHeld        EventType = "escrow_held"
	EventExtraRequested    EventType = "extra_requested"
	EventExtraDecided      EventType = "extra_decided"
	EventScheduleProposed  EventType = "schedule_proposed"
	EventScheduleConfirmed EventType = "schedule_confirmed"
	EventTicketCompleted   EventType = "ticket_completed"
	EventEscrowReleased    EventType = "escrow_released"
	EventTicketDisputed    EventType = "ticket_disputed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string      `json:"id"`
	Role domain.Role `json:"role"`
}

// Event represents a domain event emitted on every successful transition.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketOpenedPayload payload.
type TicketOpenedPayload struct {
	ContractID string  `json:"contract_id"`
	PropertyID *string `json:"property_id,omitempty"`
	Service    string  `json:"service"`
	Title      string  `json:"title"`
}

// QuoteSubmittedPayload payload.
type QuoteSubmittedPayload struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	ProID    string `json:"pro_id"`
}

// EscrowHeldPayload payload.
type EscrowHeldPayload struct {
	EscrowID   string `json:"escrow_id"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	Provider   string `json:"provider"`
	PaymentRef string `json:"payment_ref"`
}

// ExtraRequestedPayload payload.
type ExtraRequestedPayload struct {
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

// ExtraDecidedPayload payload.
type ExtraDecidedPayload struct {
	Decision domain.ExtraStatus `json:"decision"`
	Amount   string             `json:"amount"`
}

// SchedulePayload payload for both scheduling steps.
type SchedulePayload struct {
	Slot time.Time `json:"slot"`
}

// TicketCompletedPayload payload.
type TicketCompletedPayload struct {
	InvoiceURL *string `json:"invoice_url,omitempty"`
}

// EscrowReleasedPayload payload.
type EscrowReleasedPayload struct {
	EscrowID string `json:"escrow_id"`
	Amount   string `json:"amount"`
	Fee      string `json:"fee,omitempty"`
	Currency string `json:"currency"`
}

// TicketDisputedPayload payload.
type TicketDisputedPayload struct {
	EscrowID string `json:"escrow_id"`
	Reason   string `json:"reason"`
}
