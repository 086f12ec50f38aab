package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-escrow/internal/config"
	"github.com/spec-kit/maintenance-escrow/internal/idempotency"
)

// ErrorKind classifies gateway failures by how the caller must react.
type ErrorKind string

const (
	// ErrorUnavailable means the processor could not be reached or timed
	// out. Safe to retry later with the same idempotency key.
	ErrorUnavailable ErrorKind = "unavailable"
	// ErrorRejected means the processor declined the operation. Terminal;
	// surfaced to the user, never retried automatically.
	ErrorRejected ErrorKind = "rejected"
	// ErrorAuthenticationRequired means the payer must complete a challenge
	// out-of-band before the operation can be retried.
	ErrorAuthenticationRequired ErrorKind = "authentication_required"
)

// Error is the typed failure surfaced by gateway drivers.
type Error struct {
	Kind     ErrorKind
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s: %s (%s): %v", e.Provider, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("gateway %s: %s (%s)", e.Provider, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts a gateway *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr, true
	}
	return nil, false
}

// HoldRequest reserves funds without settling them (manual capture).
type HoldRequest struct {
	PayerRef       string
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

// Custody is the result of a successful hold.
type Custody struct {
	Provider string    `json:"provider"`
	Ref      string    `json:"ref"`
	HeldAt   time.Time `json:"held_at"`
}

// ReleaseRequest captures previously held funds, optionally keeping a
// platform fee before forwarding the remainder.
type ReleaseRequest struct {
	Ref            string
	Amount         decimal.Decimal
	Currency       string
	Fee            decimal.Decimal
	IdempotencyKey string
	Metadata       map[string]string
}

// Settlement is the result of a successful release.
type Settlement struct {
	Provider   string    `json:"provider"`
	Ref        string    `json:"ref"`
	ReleasedAt time.Time `json:"released_at"`
}

// Port abstracts the payment processor. Nothing above this layer knows
// which driver is active. Both operations are idempotent per logical
// request when callers reuse the same idempotency key.
type Port interface {
	Hold(ctx context.Context, req HoldRequest) (Custody, error)
	Release(ctx context.Context, req ReleaseRequest) (Settlement, error)
	Provider() string
}

// New selects and constructs the configured driver, wrapped with the
// idempotency replay cache. The mock driver refuses to load in a
// production deployment: selecting it there is a configuration error, not
// a silent no-op path for real money.
func New(cfg config.GatewayConfig, appEnv string, store idempotency.Store, logger *zap.Logger) (Port, error) {
	var driver Port
	switch cfg.Driver {
	case config.GatewayDriverMock:
		if appEnv == config.EnvProduction {
			return nil, fmt.Errorf("gateway driver %q is forbidden when APP_ENV=%s", cfg.Driver, appEnv)
		}
		driver = NewMock()
	case config.GatewayDriverPayrail:
		if cfg.BaseURL == "" || cfg.APIKey == "" {
			return nil, fmt.Errorf("gateway driver %q requires GATEWAY_BASE_URL and GATEWAY_API_KEY", cfg.Driver)
		}
		driver = NewPayrail(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown gateway driver %q", cfg.Driver)
	}
	return WithIdempotency(driver, store, logger), nil
}
