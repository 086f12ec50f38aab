package dto

import "github.com/spec-kit/maintenance-escrow/internal/domain"

// TicketToResponse maps a ticket aggregate to its API shape.
func TicketToResponse(t *domain.Ticket) TicketResponse {
	resp := TicketResponse{
		ID:          t.ID,
		ContractID:  t.ContractID,
		PropertyID:  t.PropertyID,
		OpenedBy:    t.OpenedBy,
		OwnerID:     t.OwnerID,
		ProID:       t.ProID,
		Service:     t.Service,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		InvoiceURL:  t.InvoiceURL,
		EscrowID:    t.EscrowID,
		History:     make([]HistoryEntryResponse, 0, len(t.History)),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		ClosedAt:    t.ClosedAt,
	}
	if t.Quote != nil {
		resp.Quote = &QuoteResponse{
			Amount:      t.Quote.Amount.StringFixed(2),
			Currency:    t.Quote.Currency,
			ProID:       t.Quote.ProID,
			Note:        t.Quote.Note,
			SubmittedAt: t.Quote.SubmittedAt,
		}
	}
	if t.Extra != nil {
		resp.Extra = &ExtraResponse{
			Amount:      t.Extra.Amount.StringFixed(2),
			Reason:      t.Extra.Reason,
			Status:      t.Extra.Status,
			RequestedAt: t.Extra.RequestedAt,
			DecidedAt:   t.Extra.DecidedAt,
		}
	}
	if t.Appointment != nil {
		resp.Appointment = &AppointmentResponse{
			Slot:        t.Appointment.Slot,
			ProposedAt:  t.Appointment.ProposedAt,
			ConfirmedAt: t.Appointment.ConfirmedAt,
		}
	}
	for _, ev := range t.History {
		resp.History = append(resp.History, HistoryEntryResponse{
			Timestamp: ev.Timestamp,
			ActorID:   ev.ActorID,
			ActorRole: ev.ActorRole,
			Action:    ev.Action,
			Payload:   ev.Payload,
		})
	}
	return resp
}

// TicketsToResponse maps a ticket list.
func TicketsToResponse(tickets []*domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, TicketToResponse(t))
	}
	return out
}

// EscrowToResponse maps an escrow record to its API shape.
func EscrowToResponse(e *domain.Escrow) EscrowResponse {
	resp := EscrowResponse{
		ID:         e.ID,
		ContractID: e.ContractID,
		TicketID:   e.TicketID,
		Amount:     e.Amount.StringFixed(2),
		Currency:   e.Currency,
		Status:     e.Status,
		Provider:   e.Provider,
		PaymentRef: e.PaymentRef,
		Ledger:     make([]LedgerEntryResponse, 0, len(e.Ledger)),
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
	for _, entry := range e.Ledger {
		resp.Ledger = append(resp.Ledger, LedgerEntryResponse{
			Timestamp: entry.Timestamp,
			Type:      entry.Type,
			Payload:   entry.Payload,
		})
	}
	return resp
}
