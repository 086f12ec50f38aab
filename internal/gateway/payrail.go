package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-escrow/internal/config"
)

// Payrail is the production driver. It delegates to the external payment
// processor over JSON/HTTP: Hold creates a manual-capture authorization,
// Release captures it, optionally deducting the platform fee. Requests are
// never cancellable once issued; retries must reuse the same
// Idempotency-Key header so the processor deduplicates on its side.
type Payrail struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewPayrail constructs the production driver.
func NewPayrail(cfg config.GatewayConfig, logger *zap.Logger) *Payrail {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Payrail{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Provider returns the driver name.
func (p *Payrail) Provider() string {
	return config.GatewayDriverPayrail
}

type payrailAuthorizationRequest struct {
	PayerRef string            `json:"payer_ref"`
	Amount   string            `json:"amount"`
	Currency string            `json:"currency"`
	Capture  bool              `json:"capture"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type payrailCaptureRequest struct {
	AuthorizationRef string            `json:"authorization_ref"`
	Amount           string            `json:"amount"`
	Fee              string            `json:"fee,omitempty"`
	Currency         string            `json:"currency"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

type payrailResponse struct {
	Ref       string    `json:"ref"`
	CreatedAt time.Time `json:"created_at"`
	Error     *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Hold authorizes the amount without capturing it.
func (p *Payrail) Hold(ctx context.Context, req HoldRequest) (Custody, error) {
	body := payrailAuthorizationRequest{
		PayerRef: req.PayerRef,
		Amount:   req.Amount.String(),
		Currency: req.Currency,
		Capture:  false,
		Metadata: req.Metadata,
	}
	resp, err := p.post(ctx, "/v1/authorizations", req.IdempotencyKey, body)
	if err != nil {
		return Custody{}, err
	}
	heldAt := resp.CreatedAt
	if heldAt.IsZero() {
		heldAt = time.Now().UTC()
	}
	return Custody{Provider: p.Provider(), Ref: resp.Ref, HeldAt: heldAt}, nil
}

// Release captures a prior authorization.
func (p *Payrail) Release(ctx context.Context, req ReleaseRequest) (Settlement, error) {
	body := payrailCaptureRequest{
		AuthorizationRef: req.Ref,
		Amount:           req.Amount.String(),
		Currency:         req.Currency,
		Metadata:         req.Metadata,
	}
	if !req.Fee.IsZero() {
		body.Fee = req.Fee.String()
	}
	resp, err := p.post(ctx, "/v1/captures", req.IdempotencyKey, body)
	if err != nil {
		return Settlement{}, err
	}
	releasedAt := resp.CreatedAt
	if releasedAt.IsZero() {
		releasedAt = time.Now().UTC()
	}
	return Settlement{Provider: p.Provider(), Ref: resp.Ref, ReleasedAt: releasedAt}, nil
}

func (p *Payrail) post(ctx context.Context, path, idempotencyKey string, payload any) (*payrailResponse, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, p.unavailable("encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, p.unavailable("build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, p.unavailable("request timed out", err)
		}
		return nil, p.unavailable("processor unreachable", err)
	}
	defer httpResp.Body.Close()

	var resp payrailResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil && httpResp.StatusCode < 500 {
		return nil, p.unavailable("decode response", err)
	}

	switch {
	case httpResp.StatusCode >= 200 && httpResp.StatusCode < 300:
		return &resp, nil
	case httpResp.StatusCode >= 500:
		return nil, p.unavailable(fmt.Sprintf("processor error %d", httpResp.StatusCode), nil)
	default:
		return nil, p.declined(httpResp.StatusCode, &resp)
	}
}

func (p *Payrail) unavailable(message string, err error) *Error {
	p.logger.Warn("payrail unavailable", zap.String("reason", message), zap.Error(err))
	return &Error{Kind: ErrorUnavailable, Provider: p.Provider(), Message: message, Err: err}
}

func (p *Payrail) declined(status int, resp *payrailResponse) *Error {
	code := ""
	message := fmt.Sprintf("processor declined with status %d", status)
	if resp != nil && resp.Error != nil {
		code = resp.Error.Code
		if resp.Error.Message != "" {
			message = resp.Error.Message
		}
	}
	kind := ErrorRejected
	if code == "authentication_required" {
		kind = ErrorAuthenticationRequired
	}
	p.logger.Info("payrail declined",
		zap.Int("status", status),
		zap.String("code", code),
		zap.String("kind", string(kind)))
	return &Error{Kind: kind, Provider: p.Provider(), Message: message}
}
