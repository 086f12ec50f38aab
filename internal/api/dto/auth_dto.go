package dto

import (
	"time"

	"github.com/spec-kit/maintenance-escrow/internal/domain"
)

// RegisterRequest payload.
type RegisterRequest struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	FullName string      `json:"full_name"`
	Role     domain.Role `json:"role"`
}

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordResetRequest payload.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetConfirmRequest payload.
type PasswordResetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// AccountResponse mirrors an account.
type AccountResponse struct {
	ID        string               `json:"id"`
	Email     string               `json:"email"`
	FullName  string               `json:"full_name"`
	Role      domain.Role          `json:"role"`
	Status    domain.AccountStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
}

// AuthResponse carries the issued token and account.
type AuthResponse struct {
	Token   string          `json:"token"`
	Account AccountResponse `json:"account"`
}

// AccountToResponse maps an account to its API shape.
func AccountToResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		Email:     a.Email,
		FullName:  a.Name,
		Role:      a.Role,
		Status:    a.Status,
		CreatedAt: a.CreatedAt,
	}
}
