package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-escrow/internal/config"
	"github.com/spec-kit/maintenance-escrow/internal/domain"
	"github.com/spec-kit/maintenance-escrow/internal/events"
	"github.com/spec-kit/maintenance-escrow/internal/gateway"
	"github.com/spec-kit/maintenance-escrow/internal/observability"
	"github.com/spec-kit/maintenance-escrow/internal/repository"
	apperrors "github.com/spec-kit/maintenance-escrow/pkg/util"
)

// Actor is the authenticated caller of an action handler.
type Actor struct {
	ID   string
	Role domain.Role
}

// TicketService drives the maintenance ticket state machine and the escrow
// it funds. Every action handler validates role binding, checks the
// transition table, moves money through the gateway where required, and
// appends exactly one history entry per successful transition.
type TicketService struct {
	tickets        repository.TicketRepository
	escrows        repository.EscrowRepository
	gateway        gateway.Port
	dispatcher     events.Dispatcher
	logger         *zap.Logger
	metrics        *observability.Metrics
	escrowCfg      config.EscrowConfig
	gatewayTimeout time.Duration
	locks          *ticketLocks
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	EscrowRepo     repository.EscrowRepository
	Gateway        gateway.Port
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	EscrowConfig   config.EscrowConfig
	GatewayTimeout time.Duration
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:        deps.TicketRepo,
		escrows:        deps.EscrowRepo,
		gateway:        deps.Gateway,
		dispatcher:     deps.Dispatcher,
		logger:         logger,
		metrics:        deps.Metrics,
		escrowCfg:      deps.EscrowConfig,
		gatewayTimeout: deps.GatewayTimeout,
		locks:          newTicketLocks(),
	}
}

// OpenTicketInput describes ticket creation payload.
type OpenTicketInput struct {
	ContractID  string
	OwnerID     string
	PropertyID  *string
	Service     string
	Title       string
	Description string
}

// QuoteInput is the professional's price offer.
type QuoteInput struct {
	Amount   decimal.Decimal
	Currency string
	Note     string
}

// ApproveInput carries the owner's funding source reference.
type ApproveInput struct {
	PayerRef string
}

// ExtraInput is a scope-change request.
type ExtraInput struct {
	Amount decimal.Decimal
	Reason string
}

// OpenTicket creates a ticket in the open state. Only tenants open tickets.
func (s *TicketService) OpenTicket(ctx context.Context, actor Actor, input OpenTicketInput) (*domain.Ticket, error) {
	if actor.Role != domain.RoleTenant && actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only tenants open tickets")
	}
	if input.ContractID == "" || input.OwnerID == "" || input.Service == "" || input.Title == "" {
		return nil, apperrors.NewValidationError("contract_id, owner_id, service, title required", nil)
	}

	now := time.Now().UTC()
	ticket := &domain.Ticket{
		ContractID:  input.ContractID,
		PropertyID:  input.PropertyID,
		OpenedBy:    actor.ID,
		OwnerID:     input.OwnerID,
		Service:     strings.TrimSpace(input.Service),
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		History: []domain.TicketEvent{{
			Timestamp: now,
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Action:    domain.ActionOpen,
			Payload: map[string]any{
				"contract_id": input.ContractID,
				"service":     input.Service,
				"title":       input.Title,
			},
		}},
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketOpened,
		TicketID: ticket.ID,
		Actor:    events.Actor{ID: actor.ID, Role: actor.Role},
		Payload: events.TicketOpenedPayload{
			ContractID: ticket.ContractID,
			PropertyID: ticket.PropertyID,
			Service:    ticket.Service,
			Title:      ticket.Title,
		},
	})
	return ticket, nil
}

// SubmitQuote records the professional's offer and binds the professional
// to the ticket. Accepted only while the ticket is open: re-quoting after
// quoted would silently change the agreed price before approval.
func (s *TicketService) SubmitQuote(ctx context.Context, actor Actor, ticketID string, input QuoteInput) (*domain.Ticket, error) {
	if !input.Amount.IsPositive() {
		return nil, apperrors.NewValidationError("amount must be positive", nil)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if len(currency) != 3 {
		return nil, apperrors.NewValidationError("currency must be a 3-letter code", nil)
	}

	unlock := s.locks.lock(ticketID)
	defer unlock()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, ticketNotFound(err)
	}
	if actor.Role != domain.RolePro && actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only the assigned professional may quote")
	}
	if ticket.ProID != nil && *ticket.ProID != actor.ID && actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("ticket is assigned to another professional")
	}
	if ticket.Status != domain.TicketStatusOpen {
		return nil, apperrors.NewInvalidTransition(string(domain.ActionQuote), string(ticket.Status))
	}

	now := time.Now().UTC()
	proID := actor.ID
	ticket.ProID = &proID
	ticket.Quote = &domain.Quote{
		Amount:      input.Amount,
		Currency:    currency,
		ProID:       proID,
		Note:        strings.TrimSpace(input.Note),
		SubmittedAt: now,
	}
	ticket.Status = domain.TicketStatusQuoted
	s.appendHistory(ticket, actor, domain.ActionQuote, map[string]any{
		"amount":   input.Amount.String(),
		"currency": currency,
	}, now)

	if err := s.saveTicket(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventQuoteSubmitted,
		TicketID: ticket.ID,
		Actor:    events.Actor{ID: actor.ID, Role: actor.Role},
		Payload: events.QuoteSubmittedPayload{
			Amount:   input.Amount.String(),
			Currency: currency,
			ProID:    proID,
		},
	})
	return ticket, nil
}

// Approve accepts the quote and places the quoted amount in custody. The
// gateway hold happens inside the per-ticket critical section: the ticket
// cannot reach in_progress without an acknowledged hold, and a failed hold
// leaves it quoted.
func (s *TicketService) Approve(ctx context.Context, actor Actor, ticketID string, input ApproveInput) (*domain.Ticket, *domain.Escrow, error) {
	if strings.TrimSpace(input.PayerRef) == "" {
		return nil, nil, apperrors.NewValidationError("payer_ref required", nil)
	}

	unlock := s.locks.lock(ticketID)
	defer unlock()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, ticketNotFound(err)
	}
	if err := requireOwnerBinding(actor, ticket); err != nil {
		return nil, nil, err
	}
	if ticket.Status != domain.TicketStatusQuoted || ticket.Quote == nil {
		return nil, nil, apperrors.NewInvalidTransition(string(domain.ActionApprove), string(ticket.Status))
	}
	if ticket.EscrowID != nil {
		return nil, nil, apperrors.NewConsistencyError("quoted ticket already references an escrow", map[string]any{
			"ticket_id": ticket.ID,
			"escrow_id": *ticket.EscrowID,
		})
	}

	custody, err := s.holdFunds(ctx, ticket, input.PayerRef)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	escrow := &domain.Escrow{
		ContractID: ticket.ContractID,
		TicketID:   ticket.ID,
		Amount:     ticket.Quote.Amount,
		Currency:   ticket.Quote.Currency,
		Status:     domain.EscrowStatusHeld,
		Provider:   custody.Provider,
		PaymentRef: custody.Ref,
		Ledger: []domain.LedgerEntry{{
			Timestamp: now,
			Type:      domain.LedgerEntryHold,
			Payload: map[string]any{
				"amount":      ticket.Quote.Amount.String(),
				"currency":    ticket.Quote.Currency,
				"payment_ref": custody.Ref,
				"payer_ref":   input.PayerRef,
			},
		}},
	}
	if err := s.escrows.Create(ctx, escrow); err != nil {
		if err == repository.ErrEscrowExists {
			return nil, nil, apperrors.NewConsistencyError("escrow already held for ticket", map[string]any{
				"ticket_id": ticket.ID,
			})
		}
		return nil, nil, err
	}

	ticket.EscrowID = &escrow.ID
	ticket.Status = domain.TicketStatusInProgress
	s.appendHistory(ticket, actor, domain.ActionApprove, map[string]any{
		"escrow_id": escrow.ID,
		"amount":    escrow.Amount.String(),
		"currency":  escrow.Currency,
	}, now)

	if err := s.saveTicket(ctx, ticket); err != nil {
		return nil, nil, err
	}

	s.logger.Info("escrow held",
		zap.String("ticket_id", ticket.ID),
		zap.String("escrow_id", escrow.ID),
		zap.String("amount", escrow.Amount.String()),
		zap.String("provider", escrow.Provider))

	s.publishEvent(ctx, events.Event{
		Type:     events.EventEscrowHeld,
		TicketID: ticket.ID,
		Actor:    events.Actor{ID: actor.ID, Role: actor.Role},
		Payload: events.EscrowHeldPayload{
			EscrowID:   escrow.ID,
			Amount:     escrow.Amount.String(),
			Currency:   escrow.Currency,
			Provider:   escrow.Provider,
			PaymentRef: escrow.PaymentRef,
		},
	})
	return ticket, escrow, nil
}

// RequestExtra records a pending scope-change request. At most one
// unresolved extra may exist; a resolved one is superseded by the new
// request but stays visible in history.
func (s *TicketService) RequestExtra(ctx context.Context, actor Actor, ticketID string, input ExtraInput) (*domain.Ticket, error) {
	if !input.Amount.IsPositive() {
		return nil, apperrors.NewValidationError("amount must be positive", nil)
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, apperrors.NewValidationError("reason required", nil)
	}

	unlock := s.locks.lock(ticketID)
	defer unlock()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, ticketNotFound(err)
	}
	if err := requireProBinding(actor, ticket); err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusInProgress {
		return nil, apperrors.NewInvalidTransition(string(domain.ActionRequestExtra), string(ticket.Status))
	}
	if ticket.HasPendingExtra() {
		return nil, apperrors.NewInvalidTransition(string(domain.ActionRequestExtra), string(ticket.Status))
	}

	now := time.Now().UTC()
	ticket.Extra = &domain.Extra{
		Amount:      input.Amount,
		Reason:      strings.TrimSpace(input.Reason),
		Status:      domain.ExtraStatusPending,
		RequestedAt: now,
	}
	s.appendHistory(ticket, actor, domain.ActionRequestExtra, map[string]any{
		"amount": input.Amount.String(),
		"reason": ticket.Extra.Reason,
	}, now)

	if err := s.saveTicket(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventExtraRequested,
		TicketID: ticket.ID,
		Actor:    events.Actor{ID: actor.ID, Role: actor.Role},
		Payload: events.ExtraRequestedPayload{
			Amount: input.Amount.String(),
			Reason: ticket.Extra.Reason,
		},
	})
	return ticket, nil
}

// DecideExtra approves or rejects the pending extra.
func (s *TicketService) DecideExtra(ctx context.Context, actor Actor, ticketID string, approve bool) (*domain.Ticket, error) {
	unlock := s.locks.lock(ticketID)
	defer unlock()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, ticketNotFound(err)
	}
	if err := requireOwnerBinding(actor, ticket); err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusInProgress || !ticket.HasPendingExtra() {
		return nil, apperrors.NewInvalidTransition(string(domain.ActionDecideExtra), string(ticket.Status))
	}

	now := time.Now().UTC()
	decision := domain.ExtraStatusRejected
	if approve {
		decision = domain.ExtraStatusApproved
	}
	ticket.Extra.Status = decision
	ticket.Extra.DecidedAt = &now
	s.appendHistory(ticket, actor, domain.ActionDecideExtra, map[string]any{
		"decision": string(decision),
		"amount":   ticket.Extra.Amount.String(),
	}, now)

	if err := s.saveTicket(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventExtraDecided,
		TicketID: ticket.ID,
		Actor:    events.Actor{ID: actor.ID, Role: actor.Role},
		Payload: events.ExtraDecidedPayload{
			Decision: decision,
			Amount:   ticket.Extra.Amount.String(),
		},
	})
	return ticket, nil
}

// ProposeSchedule moves an in-progress ticket to awaiting_schedule. The
// scheduling sub-flow never touches escrow.
func (s *TicketService) ProposeSchedule(ctx context.Context, actor Actor, ticketID string, slot time.Time) (*domain.Ticket, error) {
	if slot.IsZero() {
		return nil, apperrors.NewValidationError("slot required", nil)
	}

	unlock := s.locks.lock(ticketID)
	defer unlock()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, ticketNotFound(err)
	}
	if err := requireProBinding(actor, ticket); err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusInProgress {
		return nil, apperrors.NewInvalidTransition(string(domain.ActionProposeSchedule), string(ticket.Status))
	}

	now := time.Now().UTC()
	ticket.Appointment = &domain.Appointment{Slot: slot.UTC(), ProposedAt: now}
	ticket.Status = domain.TicketStatusAwaitingSchedule
	s.appendHistory(ticket, actor, domain.ActionProposeSchedule, map[string]any{
		"slot": slot.UTC().Format(time.RFC3339),
	}, now)

	if err := s.saveTicket(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventScheduleProposed,
		TicketID: ticket.ID,
		Actor:    events.Actor{ID: actor.ID, Role: actor.Role},
		Payload:  events.SchedulePayload{Slot: slot.UTC()},
	})
	return ticket, nil
}

// ConfirmSchedule moves awaiting_schedule to scheduled.
func (s *TicketService) ConfirmSchedule(ctx context.Context, actor Actor, ticketID string) (*domain.Ticket, error) {
	unlock := s.locks.lock(ticketID)
	defer unlock()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, ticketNotFound(err)
	}
	if err := requireTenantBinding(actor, ticket); err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusAwaitingSchedule || ticket.Appointment == nil {
		return nil, apperrors.NewInvalidTransition(string(domain.ActionConfirmSchedule), string(ticket.Status))
	}

	now := time.Now().UTC()
	ticket.Appointment.ConfirmedAt = &now
	ticket.Status = domain.TicketStatusScheduled
	s.appendHistory(ticket, actor, domain.ActionConfirmSchedule, map[string]any{
		"slot": ticket.Appointment.Slot.Format(time.RFC3339),
	}, now)

	if err := s.saveTicket(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventScheduleConfirmed,
		TicketID: ticket.ID,
		Actor:    events.Actor{ID: actor.ID, Role: actor.Role},
		Payload:  events.SchedulePayload{Slot: ticket.Appointment.Slot},
	})
	return ticket, nil
}

// Complete marks the work done and hands the ticket to validation. Allowed
// from in_progress and from the scheduling sub-states, which are working
// states with escrow held.
func (s *TicketService) Complete(ctx context.Context, actor Actor, ticketID string, invoiceURL *string) (*domain.Ticket, error) {
	unlock := s.locks.lock(ticketID)
	defer unlock()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, ticketNotFound(err)
	}
	if err := requireProBinding(actor, ticket); err != nil {
		return nil, err
	}
	switch ticket.Status {
	case domain.TicketStatusInProgress, domain.TicketStatusAwaitingSchedule, domain.TicketStatusScheduled:
	default:
		return nil, apperrors.NewInvalidTransition(string(domain.ActionComplete), string(ticket.Status))
	}

	now := time.Now().UTC()
	payload := map[string]any{}
	if invoiceURL != nil && strings.TrimSpace(*invoiceURL) != "" {
		trimmed := strings.TrimSpace(*invoiceURL)
		ticket.InvoiceURL = &trimmed
		payload["invoice_url"] = trimmed
	}
	ticket.Status = domain.TicketStatusAwaitingValidation
	s.appendHistory(ticket, actor, domain.ActionComplete, payload, now)

	if err := s.saveTicket(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCompleted,
		TicketID: ticket.ID,
		Actor:    events.Actor{ID: actor.ID, Role: actor.Role},
		Payload:  events.TicketCompletedPayload{InvoiceURL: ticket.InvoiceURL},
	})
	return ticket, nil
}

// Validate accepts the completed work and settles the escrow. The release
// amount is the quote plus the approved extra; anything else recorded in
// custody is a fatal consistency error, never silently adjusted.
func (s *TicketService) Validate(ctx context.Context, actor Actor, ticketID string) (*domain.Ticket, *domain.Escrow, error) {
	unlock := s.locks.lock(ticketID)
	defer unlock()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, ticketNotFound(err)
	}
	if err := s.requireValidatorBinding(actor, ticket); err != nil {
		return nil, nil, err
	}
	if ticket.Status != domain.TicketStatusAwaitingValidation || ticket.EscrowID == nil || ticket.Quote == nil {
		return nil, nil, apperrors.NewInvalidTransition(string(domain.ActionValidate), string(ticket.Status))
	}

	escrow, err := s.escrows.GetByID(ctx, *ticket.EscrowID)
	if err != nil {
		return nil, nil, err
	}
	if escrow.Status != domain.EscrowStatusHeld {
		return nil, nil, apperrors.NewInvalidTransition(string(domain.ActionValidate), string(ticket.Status))
	}
	if !escrow.Amount.Equal(ticket.Quote.Amount) {
		return nil, nil, apperrors.NewConsistencyError("held amount does not match quote", map[string]any{
			"ticket_id": ticket.ID,
			"escrow_id": escrow.ID,
			"held":      escrow.Amount.String(),
			"quote":     ticket.Quote.Amount.String(),
		})
	}

	total := ticket.SettlementAmount()
	fee := s.platformFee(total)
	settlement, err := s.releaseFunds(ctx, ticket, escrow, total, fee)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	escrow.Status = domain.EscrowStatusReleased
	escrow.Ledger = append(escrow.Ledger, domain.LedgerEntry{
		Timestamp: now,
		Type:      domain.LedgerEntryRelease,
		Payload: map[string]any{
			"amount":      total.String(),
			"fee":         fee.String(),
			"currency":    escrow.Currency,
			"capture_ref": settlement.Ref,
		},
	})
	if err := s.escrows.Update(ctx, escrow); err != nil {
		return nil, nil, err
	}

	ticket.Status = domain.TicketStatusClosed
	ticket.ClosedAt = &now
	s.appendHistory(ticket, actor, domain.ActionValidate, map[string]any{
		"escrow_id": escrow.ID,
		"amount":    total.String(),
		"fee":       fee.String(),
	}, now)

	if err := s.saveTicket(ctx, ticket); err != nil {
		return nil, nil, err
	}

	s.logger.Info("escrow released",
		zap.String("ticket_id", ticket.ID),
		zap.String("escrow_id", escrow.ID),
		zap.String("amount", total.String()),
		zap.String("fee", fee.String()))

	s.publishEvent(ctx, events.Event{
		Type:     events.EventEscrowReleased,
		TicketID: ticket.ID,
		Actor:    events.Actor{ID: actor.ID, Role: actor.Role},
		Payload: events.EscrowReleasedPayload{
			EscrowID: escrow.ID,
			Amount:   total.String(),
			Fee:      fee.String(),
			Currency: escrow.Currency,
		},
	})
	return ticket, escrow, nil
}

// Dispute freezes the held funds pending manual resolution. Allowed for
// tenant or owner from any non-terminal state with escrow held; both the
// ticket and the escrow land in their terminal disputed state.
func (s *TicketService) Dispute(ctx context.Context, actor Actor, ticketID, reason string) (*domain.Ticket, *domain.Escrow, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, nil, apperrors.NewValidationError("reason required", nil)
	}

	unlock := s.locks.lock(ticketID)
	defer unlock()

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, ticketNotFound(err)
	}
	if err := requireTenantOrOwnerBinding(actor, ticket); err != nil {
		return nil, nil, err
	}
	if ticket.Status.IsTerminal() || ticket.EscrowID == nil {
		return nil, nil, apperrors.NewInvalidTransition(string(domain.ActionDispute), string(ticket.Status))
	}

	escrow, err := s.escrows.GetByID(ctx, *ticket.EscrowID)
	if err != nil {
		return nil, nil, err
	}
	if escrow.Status != domain.EscrowStatusHeld {
		return nil, nil, apperrors.NewInvalidTransition(string(domain.ActionDispute), string(ticket.Status))
	}

	now := time.Now().UTC()
	escrow.Status = domain.EscrowStatusDisputed
	escrow.Ledger = append(escrow.Ledger, domain.LedgerEntry{
		Timestamp: now,
		Type:      domain.LedgerEntryDispute,
		Payload: map[string]any{
			"reason":      strings.TrimSpace(reason),
			"raised_by":   actor.ID,
			"raised_role": string(actor.Role),
		},
	})
	if err := s.escrows.Update(ctx, escrow); err != nil {
		return nil, nil, err
	}

	ticket.Status = domain.TicketStatusDisputed
	s.appendHistory(ticket, actor, domain.ActionDispute, map[string]any{
		"escrow_id": escrow.ID,
		"reason":    strings.TrimSpace(reason),
	}, now)

	if err := s.saveTicket(ctx, ticket); err != nil {
		return nil, nil, err
	}

	s.logger.Warn("escrow disputed",
		zap.String("ticket_id", ticket.ID),
		zap.String("escrow_id", escrow.ID),
		zap.String("raised_by", actor.ID))

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDisputed,
		TicketID: ticket.ID,
		Actor:    events.Actor{ID: actor.ID, Role: actor.Role},
		Payload: events.TicketDisputedPayload{
			EscrowID: escrow.ID,
			Reason:   strings.TrimSpace(reason),
		},
	})
	return ticket, escrow, nil
}

// GetTicket fetches a ticket for a bound party.
func (s *TicketService) GetTicket(ctx context.Context, actor Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, ticketNotFound(err)
	}
	if !boundToTicket(actor, ticket) {
		return nil, apperrors.NewForbidden("not a party to this ticket")
	}
	return ticket, nil
}

// ListTickets returns tickets the actor is bound to.
func (s *TicketService) ListTickets(ctx context.Context, actor Actor, limit, offset int) ([]domain.Ticket, error) {
	return s.tickets.ListForAccount(ctx, actor.ID, limit, offset)
}

// GetEscrow fetches an escrow for a bound party.
func (s *TicketService) GetEscrow(ctx context.Context, actor Actor, escrowID string) (*domain.Escrow, error) {
	escrow, err := s.escrows.GetByID(ctx, escrowID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	ticket, err := s.tickets.GetByID(ctx, escrow.TicketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !boundToTicket(actor, ticket) {
		return nil, apperrors.NewForbidden("not a party to this escrow")
	}
	return escrow, nil
}

func (s *TicketService) holdFunds(ctx context.Context, ticket *domain.Ticket, payerRef string) (gateway.Custody, error) {
	callCtx := ctx
	if s.gatewayTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.gatewayTimeout)
		defer cancel()
	}
	custody, err := s.gateway.Hold(callCtx, gateway.HoldRequest{
		PayerRef:       payerRef,
		Amount:         ticket.Quote.Amount,
		Currency:       ticket.Quote.Currency,
		IdempotencyKey: "ticket:" + ticket.ID + ":hold",
		Metadata: map[string]string{
			"ticket_id":   ticket.ID,
			"contract_id": ticket.ContractID,
		},
	})
	s.metrics.RecordGatewayCall("hold", gatewayOutcome(err))
	return custody, err
}

func (s *TicketService) releaseFunds(ctx context.Context, ticket *domain.Ticket, escrow *domain.Escrow, amount, fee decimal.Decimal) (gateway.Settlement, error) {
	callCtx := ctx
	if s.gatewayTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.gatewayTimeout)
		defer cancel()
	}
	settlement, err := s.gateway.Release(callCtx, gateway.ReleaseRequest{
		Ref:            escrow.PaymentRef,
		Amount:         amount,
		Currency:       escrow.Currency,
		Fee:            fee,
		IdempotencyKey: "escrow:" + escrow.ID + ":release",
		Metadata: map[string]string{
			"ticket_id": ticket.ID,
			"escrow_id": escrow.ID,
		},
	})
	s.metrics.RecordGatewayCall("release", gatewayOutcome(err))
	return settlement, err
}

func gatewayOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	if gwErr, ok := gateway.AsError(err); ok {
		return string(gwErr.Kind)
	}
	return "error"
}

// platformFee computes the configured basis-points fee, rounded to cents.
func (s *TicketService) platformFee(amount decimal.Decimal) decimal.Decimal {
	if s.escrowCfg.PlatformFeeBps <= 0 {
		return decimal.Zero
	}
	bps := decimal.NewFromInt(s.escrowCfg.PlatformFeeBps)
	return amount.Mul(bps).Div(decimal.NewFromInt(10000)).Round(2)
}

func (s *TicketService) appendHistory(ticket *domain.Ticket, actor Actor, action domain.Action, payload map[string]any, at time.Time) {
	ticket.History = append(ticket.History, domain.TicketEvent{
		Timestamp: at,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Action:    action,
		Payload:   payload,
	})
}

func (s *TicketService) saveTicket(ctx context.Context, ticket *domain.Ticket) error {
	if err := s.tickets.Update(ctx, ticket); err != nil {
		if err == repository.ErrVersionConflict {
			return apperrors.NewConflict("ticket was modified concurrently", map[string]any{
				"ticket_id": ticket.ID,
			})
		}
		return err
	}
	return nil
}

func (s *TicketService) requireValidatorBinding(actor Actor, ticket *domain.Ticket) error {
	if actor.Role == domain.RoleAdmin {
		return nil
	}
	if actor.Role == domain.RoleOwner && ticket.OwnerID == actor.ID {
		return nil
	}
	if s.escrowCfg.ValidatePolicy == config.ValidatePolicyOwnerOrTenant &&
		actor.Role == domain.RoleTenant && ticket.OpenedBy == actor.ID {
		return nil
	}
	return apperrors.NewForbidden("not allowed to validate this ticket")
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func requireOwnerBinding(actor Actor, ticket *domain.Ticket) error {
	if actor.Role == domain.RoleAdmin {
		return nil
	}
	if actor.Role != domain.RoleOwner {
		return apperrors.NewForbidden("owner role required")
	}
	if ticket.OwnerID != actor.ID {
		return apperrors.NewForbidden("not the owner of this ticket")
	}
	return nil
}

func requireProBinding(actor Actor, ticket *domain.Ticket) error {
	if actor.Role == domain.RoleAdmin {
		return nil
	}
	if actor.Role != domain.RolePro {
		return apperrors.NewForbidden("professional role required")
	}
	if ticket.ProID == nil || *ticket.ProID != actor.ID {
		return apperrors.NewForbidden("not the assigned professional")
	}
	return nil
}

func requireTenantBinding(actor Actor, ticket *domain.Ticket) error {
	if actor.Role == domain.RoleAdmin {
		return nil
	}
	if actor.Role != domain.RoleTenant {
		return apperrors.NewForbidden("tenant role required")
	}
	if ticket.OpenedBy != actor.ID {
		return apperrors.NewForbidden("not the tenant on this ticket")
	}
	return nil
}

func requireTenantOrOwnerBinding(actor Actor, ticket *domain.Ticket) error {
	if actor.Role == domain.RoleAdmin {
		return nil
	}
	switch actor.Role {
	case domain.RoleTenant:
		if ticket.OpenedBy == actor.ID {
			return nil
		}
	case domain.RoleOwner:
		if ticket.OwnerID == actor.ID {
			return nil
		}
	default:
		return apperrors.NewForbidden("tenant or owner role required")
	}
	return apperrors.NewForbidden("not a party to this ticket")
}

func boundToTicket(actor Actor, ticket *domain.Ticket) bool {
	if actor.Role == domain.RoleAdmin {
		return true
	}
	if ticket.OpenedBy == actor.ID || ticket.OwnerID == actor.ID {
		return true
	}
	return ticket.ProID != nil && *ticket.ProID == actor.ID
}

func ticketNotFound(err error) error {
	de := apperrors.ToDomainError(err)
	if de.Code == "NOT_FOUND" {
		return apperrors.NewNotFound("ticket", nil)
	}
	return de
}
