package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-escrow/internal/api/dto"
	"github.com/spec-kit/maintenance-escrow/internal/auth"
	"github.com/spec-kit/maintenance-escrow/internal/service"
	apperrors "github.com/spec-kit/maintenance-escrow/pkg/util"
)

// AccountsHandler exposes registration, login, and password reset.
type AccountsHandler struct {
	service *service.AuthService
	logger  *zap.Logger
}

// NewAccountsHandler constructs handler.
func NewAccountsHandler(authService *service.AuthService, logger *zap.Logger) *AccountsHandler {
	return &AccountsHandler{service: authService, logger: logger}
}

// Register POST /auth/register.
func (h *AccountsHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" || strings.TrimSpace(req.FullName) == "" {
		return apperrors.NewValidationError("email, password, full_name required", nil)
	}
	account, token, _, err := h.service.Register(c.UserContext(), req.FullName, req.Email, req.Password, req.Role)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.AuthResponse{
		Token:   token,
		Account: dto.AccountToResponse(account),
	}})
}

// Login POST /auth/login.
func (h *AccountsHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	account, token, _, err := h.service.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuthResponse{
		Token:   token,
		Account: dto.AccountToResponse(account),
	}})
}

// RequestPasswordReset POST /auth/password/reset/request.
func (h *AccountsHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Email) == "" {
		return apperrors.NewValidationError("email required", nil)
	}
	// Always respond accepted so the endpoint cannot be used to probe
	// which emails have accounts.
	if _, err := h.service.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
		h.logger.Debug("password reset request failed", zap.Error(err))
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "accepted"}})
}

// ConfirmPasswordReset POST /auth/password/reset/confirm.
func (h *AccountsHandler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Token == "" || req.NewPassword == "" {
		return apperrors.NewValidationError("token, new_password required", nil)
	}
	if err := h.service.ConfirmPasswordReset(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "password_updated"}})
}

// Me GET /auth/me.
func (h *AccountsHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Account == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": dto.AccountToResponse(principal.Account)})
}
