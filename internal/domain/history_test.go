package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/maintenance-escrow/internal/domain"
)

func entry(action domain.Action, payload map[string]any) domain.TicketEvent {
	return domain.TicketEvent{
		Timestamp: time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC),
		ActorID:   "acc_1",
		ActorRole: domain.RoleTenant,
		Action:    action,
		Payload:   payload,
	}
}

func TestReplayHistory_FullLifecycle(t *testing.T) {
	history := []domain.TicketEvent{
		entry(domain.ActionOpen, nil),
		entry(domain.ActionQuote, map[string]any{"amount": "120", "currency": "EUR"}),
		entry(domain.ActionApprove, nil),
		entry(domain.ActionRequestExtra, map[string]any{"amount": "30", "reason": "codo adicional"}),
		entry(domain.ActionDecideExtra, map[string]any{"decision": "approved"}),
		entry(domain.ActionComplete, nil),
		entry(domain.ActionValidate, nil),
	}

	res, err := domain.ReplayHistory(history)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, res.Status)
	require.NotNil(t, res.Quote)
	assert.True(t, res.Quote.Amount.Equal(decimal.RequireFromString("120")))
	assert.Equal(t, "EUR", res.Quote.Currency)
	require.NotNil(t, res.Extra)
	assert.Equal(t, domain.ExtraStatusApproved, res.Extra.Status)
}

func TestReplayHistory_NumericAmountsAccepted(t *testing.T) {
	// Payloads read back from JSONB may surface numbers as float64.
	history := []domain.TicketEvent{
		entry(domain.ActionOpen, nil),
		entry(domain.ActionQuote, map[string]any{"amount": float64(85.5), "currency": "EUR"}),
	}

	res, err := domain.ReplayHistory(history)
	require.NoError(t, err)
	assert.True(t, res.Quote.Amount.Equal(decimal.RequireFromString("85.5")))
}

func TestReplayHistory_DecisionWithoutRequest_Fails(t *testing.T) {
	history := []domain.TicketEvent{
		entry(domain.ActionOpen, nil),
		entry(domain.ActionDecideExtra, map[string]any{"decision": "approved"}),
	}

	_, err := domain.ReplayHistory(history)
	assert.Error(t, err)
}

func TestReplayHistory_UnknownAction_Fails(t *testing.T) {
	_, err := domain.ReplayHistory([]domain.TicketEvent{entry("teleport", nil)})
	assert.Error(t, err)
}

func TestSettlementAmount(t *testing.T) {
	quote := decimal.RequireFromString("120")
	extra := decimal.RequireFromString("30")

	ticket := domain.Ticket{Quote: &domain.Quote{Amount: quote}}
	assert.True(t, ticket.SettlementAmount().Equal(quote))

	ticket.Extra = &domain.Extra{Amount: extra, Status: domain.ExtraStatusPending}
	assert.True(t, ticket.SettlementAmount().Equal(quote), "pending extra does not settle")

	ticket.Extra.Status = domain.ExtraStatusRejected
	assert.True(t, ticket.SettlementAmount().Equal(quote), "rejected extra does not settle")

	ticket.Extra.Status = domain.ExtraStatusApproved
	assert.True(t, ticket.SettlementAmount().Equal(decimal.RequireFromString("150")))
}

func TestStatusTerminality(t *testing.T) {
	assert.True(t, domain.TicketStatusClosed.IsTerminal())
	assert.True(t, domain.TicketStatusDisputed.IsTerminal())
	assert.False(t, domain.TicketStatusInProgress.IsTerminal())

	assert.True(t, domain.EscrowStatusReleased.IsTerminal())
	assert.True(t, domain.EscrowStatusDisputed.IsTerminal())
	assert.False(t, domain.EscrowStatusHeld.IsTerminal())
}
