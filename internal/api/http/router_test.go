package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/maintenance-escrow/internal/api/http"
	"github.com/spec-kit/maintenance-escrow/internal/api/http/handlers"
	"github.com/spec-kit/maintenance-escrow/internal/auth"
	"github.com/spec-kit/maintenance-escrow/internal/config"
	"github.com/spec-kit/maintenance-escrow/internal/events"
	"github.com/spec-kit/maintenance-escrow/internal/gateway"
	"github.com/spec-kit/maintenance-escrow/internal/idempotency"
	"github.com/spec-kit/maintenance-escrow/internal/observability"
	"github.com/spec-kit/maintenance-escrow/internal/repository"
	"github.com/spec-kit/maintenance-escrow/internal/service"
)

type testApp struct {
	app *fiber.App
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := zap.NewNop()

	accountRepo := repository.NewMemoryAccountRepository()
	resetRepo := repository.NewMemoryPasswordResetRepository()
	ticketRepo := repository.NewMemoryTicketRepository()
	escrowRepo := repository.NewMemoryEscrowRepository()

	gw, err := gateway.New(config.GatewayConfig{Driver: config.GatewayDriverMock}, "test", idempotency.NewMemoryStore(), logger)
	require.NoError(t, err)

	authService := service.NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 60,
		BcryptCost:            4,
	}, accountRepo, resetRepo)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   ticketRepo,
		EscrowRepo:   escrowRepo,
		Gateway:      gw,
		Dispatcher:   events.NewInMemoryDispatcher(),
		Logger:       logger,
		EscrowConfig: config.EscrowConfig{ValidatePolicy: config.ValidatePolicyOwner},
	})

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, observability.NewMetrics(), 5*time.Second)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler("maintenance-escrow", "test", nil, nil),
		Accounts:       handlers.NewAccountsHandler(authService, logger),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), accountRepo),
	})
	return &testApp{app: app}
}

func (ta *testApp) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp, decoded
}

// register creates an account and returns its id and bearer token.
func (ta *testApp) register(t *testing.T, name, email, role string) (string, string) {
	t.Helper()
	resp, body := ta.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"full_name": name,
		"email":     email,
		"password":  "pass-1234",
		"role":      role,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := body["data"].(map[string]any)
	account := data["account"].(map[string]any)
	return account["id"].(string), data["token"].(string)
}

func TestHTTP_FullLifecycle(t *testing.T) {
	// GIVEN: Registered tenant, owner, and professional accounts
	// WHEN: The repair flow runs end to end over HTTP
	// THEN: Each step responds with the expected status and state

	ta := newTestApp(t)
	_, tenantTok := ta.register(t, "Theo Tenant", "tenant@example.com", "tenant")
	ownerID, ownerTok := ta.register(t, "Nora Owner", "owner@example.com", "owner")
	_, proTok := ta.register(t, "Pat Plumber", "pro@example.com", "pro")

	resp, body := ta.do(t, http.MethodPost, "/tickets", tenantTok, map[string]any{
		"contract_id": "ctr_1",
		"owner_id":    ownerID,
		"service":     "plumbing",
		"title":       "kitchen sink leak",
		"description": "steady drip under the sink",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ticket := body["data"].(map[string]any)
	ticketID := ticket["id"].(string)
	assert.Equal(t, "open", ticket["status"])

	resp, body = ta.do(t, http.MethodPost, fmt.Sprintf("/tickets/%s/quote", ticketID), proTok, map[string]any{
		"amount":   "120",
		"currency": "eur",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ticket = body["data"].(map[string]any)
	assert.Equal(t, "quoted", ticket["status"])
	assert.Equal(t, "EUR", ticket["quote"].(map[string]any)["currency"])

	resp, body = ta.do(t, http.MethodPost, fmt.Sprintf("/tickets/%s/approve", ticketID), ownerTok, map[string]any{
		"payer_ref": "card_owner",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "in_progress", data["ticket"].(map[string]any)["status"])
	escrow := data["escrow"].(map[string]any)
	escrowID := escrow["id"].(string)
	assert.Equal(t, "held", escrow["status"])
	assert.Equal(t, "120.00", escrow["amount"])

	resp, _ = ta.do(t, http.MethodPost, fmt.Sprintf("/tickets/%s/extra", ticketID), proTok, map[string]any{
		"amount": "30",
		"reason": "codo adicional",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ta.do(t, http.MethodPost, fmt.Sprintf("/tickets/%s/extra/decide", ticketID), ownerTok, map[string]any{
		"approve": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ta.do(t, http.MethodPost, fmt.Sprintf("/tickets/%s/complete", ticketID), proTok, map[string]any{
		"invoice_url": "https://invoices.test/inv-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = ta.do(t, http.MethodPost, fmt.Sprintf("/tickets/%s/validate", ticketID), ownerTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data = body["data"].(map[string]any)
	assert.Equal(t, "closed", data["ticket"].(map[string]any)["status"])
	assert.Equal(t, "released", data["escrow"].(map[string]any)["status"])

	resp, body = ta.do(t, http.MethodGet, "/escrows/"+escrowID, ownerTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ledger := body["data"].(map[string]any)["ledger"].([]any)
	require.Len(t, ledger, 2)
	release := ledger[1].(map[string]any)
	assert.Equal(t, "release", release["type"])
	assert.Equal(t, "150", release["payload"].(map[string]any)["amount"])
}

func TestHTTP_ErrorShapes(t *testing.T) {
	// GIVEN: A ticket in the open state
	// WHEN: Callers break role, binding, and transition rules
	// THEN: Responses carry the documented error envelope and status codes

	ta := newTestApp(t)
	_, tenantTok := ta.register(t, "Theo Tenant", "tenant@example.com", "tenant")
	ownerID, ownerTok := ta.register(t, "Nora Owner", "owner@example.com", "owner")

	resp, body := ta.do(t, http.MethodPost, "/tickets", tenantTok, map[string]any{
		"contract_id": "ctr_1",
		"owner_id":    ownerID,
		"service":     "plumbing",
		"title":       "leak",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ticketID := body["data"].(map[string]any)["id"].(string)

	// No token.
	resp, body = ta.do(t, http.MethodGet, "/tickets/"+ticketID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", body["error"].(map[string]any)["code"])

	// Owner tries to open a ticket: wrong role class.
	resp, body = ta.do(t, http.MethodPost, "/tickets", ownerTok, map[string]any{
		"contract_id": "ctr_2",
		"owner_id":    ownerID,
		"service":     "plumbing",
		"title":       "leak",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", body["error"].(map[string]any)["code"])

	// Approve before quote: transition refused.
	resp, body = ta.do(t, http.MethodPost, fmt.Sprintf("/tickets/%s/approve", ticketID), ownerTok, map[string]any{
		"payer_ref": "card_owner",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "INVALID_TRANSITION", errObj["code"])
	details := errObj["details"].(map[string]any)
	assert.Equal(t, "approve", details["action"])
	assert.Equal(t, "open", details["status"])

	// Unknown ticket.
	resp, body = ta.do(t, http.MethodGet, "/tickets/tck_unknown", tenantTok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}

func TestHTTP_HealthLive(t *testing.T) {
	ta := newTestApp(t)
	resp, body := ta.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alive", body["status"])
}
