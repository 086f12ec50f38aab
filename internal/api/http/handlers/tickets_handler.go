package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/maintenance-escrow/internal/api/dto"
	"github.com/spec-kit/maintenance-escrow/internal/auth"
	"github.com/spec-kit/maintenance-escrow/internal/service"
	apperrors "github.com/spec-kit/maintenance-escrow/pkg/util"
)

// TicketsHandler exposes the maintenance ticket lifecycle.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// OpenTicket POST /tickets.
func (h *TicketsHandler) OpenTicket(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.OpenTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.OpenTicket(c.UserContext(), actor, service.OpenTicketInput{
		ContractID:  req.ContractID,
		OwnerID:     req.OwnerID,
		PropertyID:  req.PropertyID,
		Service:     req.Service,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.TicketToResponse(ticket)})
}

// SubmitQuote POST /tickets/:id/quote.
func (h *TicketsHandler) SubmitQuote(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.QuoteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.SubmitQuote(c.UserContext(), actor, c.Params("id"), service.QuoteInput{
		Amount:   req.Amount,
		Currency: req.Currency,
		Note:     req.Note,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketToResponse(ticket)})
}

// Approve POST /tickets/:id/approve.
func (h *TicketsHandler) Approve(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.ApproveRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.PayerRef) == "" {
		return apperrors.NewValidationError("payer_ref required", nil)
	}
	ticket, escrow, err := h.service.Approve(c.UserContext(), actor, c.Params("id"), service.ApproveInput{PayerRef: req.PayerRef})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketEscrowResponse{
		Ticket: dto.TicketToResponse(ticket),
		Escrow: dto.EscrowToResponse(escrow),
	}})
}

// RequestExtra POST /tickets/:id/extra.
func (h *TicketsHandler) RequestExtra(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.ExtraRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.RequestExtra(c.UserContext(), actor, c.Params("id"), service.ExtraInput{
		Amount: req.Amount,
		Reason: req.Reason,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketToResponse(ticket)})
}

// DecideExtra POST /tickets/:id/extra/decide.
func (h *TicketsHandler) DecideExtra(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.DecideExtraRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.DecideExtra(c.UserContext(), actor, c.Params("id"), req.Approve)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketToResponse(ticket)})
}

// ProposeSchedule POST /tickets/:id/schedule.
func (h *TicketsHandler) ProposeSchedule(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.ScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Slot.IsZero() {
		return apperrors.NewValidationError("slot required", nil)
	}
	ticket, err := h.service.ProposeSchedule(c.UserContext(), actor, c.Params("id"), req.Slot)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketToResponse(ticket)})
}

// ConfirmSchedule POST /tickets/:id/schedule/confirm.
func (h *TicketsHandler) ConfirmSchedule(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.ConfirmSchedule(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketToResponse(ticket)})
}

// Complete POST /tickets/:id/complete.
func (h *TicketsHandler) Complete(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CompleteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.Complete(c.UserContext(), actor, c.Params("id"), req.InvoiceURL)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketToResponse(ticket)})
}

// Validate POST /tickets/:id/validate.
func (h *TicketsHandler) Validate(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	ticket, escrow, err := h.service.Validate(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketEscrowResponse{
		Ticket: dto.TicketToResponse(ticket),
		Escrow: dto.EscrowToResponse(escrow),
	}})
}

// Dispute POST /tickets/:id/dispute.
func (h *TicketsHandler) Dispute(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.DisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return apperrors.NewValidationError("reason required", nil)
	}
	ticket, escrow, err := h.service.Dispute(c.UserContext(), actor, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketEscrowResponse{
		Ticket: dto.TicketToResponse(ticket),
		Escrow: dto.EscrowToResponse(escrow),
	}})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketToResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	tickets, err := h.service.ListTickets(c.UserContext(), actor, pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.TicketToResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetEscrow GET /escrows/:id.
func (h *TicketsHandler) GetEscrow(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	escrow, err := h.service.GetEscrow(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.EscrowToResponse(escrow)})
}

func actorFromContext(c *fiber.Ctx) (service.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Account == nil {
		return service.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return service.Actor{ID: principal.Account.ID, Role: principal.Role}, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
