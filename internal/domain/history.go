package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Action names an actor-initiated transition recorded in ticket history.
type Action string

const (
	ActionOpen            Action = "open"
	ActionQuote           Action = "quote"
	ActionApprove         Action = "approve"
	ActionRequestExtra    Action = "request_extra"
	ActionDecideExtra     Action = "decide_extra"
	ActionProposeSchedule Action = "propose_schedule"
	ActionConfirmSchedule Action = "confirm_schedule"
	ActionComplete        Action = "complete"
	ActionValidate        Action = "validate"
	ActionDispute         Action = "dispute"
)

// TicketEvent is one immutable history entry, appended per successful
// transition. The history array is the sole record of who did what when.
type TicketEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	ActorID   string         `json:"actor_id"`
	ActorRole Role           `json:"actor_role"`
	Action    Action         `json:"action"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// ReplayResult is the ticket state reconstructed from history.
type ReplayResult struct {
	Status TicketStatus
	Quote  *Quote
	Extra  *Extra
}

// ReplayHistory folds a ticket's history into its current status, quote and
// extra. It is used for audits, never as the live state store; a mismatch
// with the stored ticket indicates corruption.
func ReplayHistory(events []TicketEvent) (ReplayResult, error) {
	res := ReplayResult{}
	for i, ev := range events {
		switch ev.Action {
		case ActionOpen:
			res.Status = TicketStatusOpen
		case ActionQuote:
			amount, err := payloadAmount(ev.Payload, "amount")
			if err != nil {
				return ReplayResult{}, fmt.Errorf("history[%d] quote: %w", i, err)
			}
			res.Quote = &Quote{
				Amount:      amount,
				Currency:    payloadString(ev.Payload, "currency"),
				ProID:       ev.ActorID,
				SubmittedAt: ev.Timestamp,
			}
			res.Status = TicketStatusQuoted
		case ActionApprove:
			res.Status = TicketStatusInProgress
		case ActionRequestExtra:
			amount, err := payloadAmount(ev.Payload, "amount")
			if err != nil {
				return ReplayResult{}, fmt.Errorf("history[%d] extra: %w", i, err)
			}
			res.Extra = &Extra{
				Amount:      amount,
				Reason:      payloadString(ev.Payload, "reason"),
				Status:      ExtraStatusPending,
				RequestedAt: ev.Timestamp,
			}
		case ActionDecideExtra:
			if res.Extra == nil {
				return ReplayResult{}, fmt.Errorf("history[%d]: extra decision without request", i)
			}
			decided := ev.Timestamp
			res.Extra.DecidedAt = &decided
			if payloadString(ev.Payload, "decision") == string(ExtraStatusApproved) {
				res.Extra.Status = ExtraStatusApproved
			} else {
				res.Extra.Status = ExtraStatusRejected
			}
		case ActionProposeSchedule:
			res.Status = TicketStatusAwaitingSchedule
		case ActionConfirmSchedule:
			res.Status = TicketStatusScheduled
		case ActionComplete:
			res.Status = TicketStatusAwaitingValidation
		case ActionValidate:
			res.Status = TicketStatusClosed
		case ActionDispute:
			res.Status = TicketStatusDisputed
		default:
			return ReplayResult{}, fmt.Errorf("history[%d]: unknown action %q", i, ev.Action)
		}
	}
	return res, nil
}

func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

// payloadAmount reads a monetary value from a history payload. Amounts are
// recorded as strings so JSONB round-trips never lose precision.
func payloadAmount(payload map[string]any, key string) (decimal.Decimal, error) {
	raw, ok := payload[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("missing %q", key)
	}
	switch v := raw.(type) {
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported %q type %T", key, raw)
	}
}
