package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-escrow/internal/config"
	"github.com/spec-kit/maintenance-escrow/internal/gateway"
	"github.com/spec-kit/maintenance-escrow/internal/idempotency"
)

func TestNew_MockForbiddenInProduction(t *testing.T) {
	// GIVEN: APP_ENV=production
	// WHEN: The mock driver is configured
	// THEN: Construction fails instead of silently faking money movement

	_, err := gateway.New(config.GatewayConfig{Driver: config.GatewayDriverMock}, config.EnvProduction, nil, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden")
}

func TestNew_MockAllowedOutsideProduction(t *testing.T) {
	port, err := gateway.New(config.GatewayConfig{Driver: config.GatewayDriverMock}, "development", nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, gateway.ProviderMock, port.Provider())
}

func TestNew_UnknownDriverRejected(t *testing.T) {
	_, err := gateway.New(config.GatewayConfig{Driver: "paper-cheque"}, "development", nil, zap.NewNop())
	assert.Error(t, err)
}

func TestNew_PayrailRequiresCredentials(t *testing.T) {
	_, err := gateway.New(config.GatewayConfig{Driver: config.GatewayDriverPayrail}, config.EnvProduction, nil, zap.NewNop())
	assert.Error(t, err)
}

type countingPort struct {
	inner    gateway.Port
	holds    int
	releases int
}

func (c *countingPort) Provider() string { return c.inner.Provider() }

func (c *countingPort) Hold(ctx context.Context, req gateway.HoldRequest) (gateway.Custody, error) {
	c.holds++
	return c.inner.Hold(ctx, req)
}

func (c *countingPort) Release(ctx context.Context, req gateway.ReleaseRequest) (gateway.Settlement, error) {
	c.releases++
	return c.inner.Release(ctx, req)
}

func TestWithIdempotency_ReplaysRecordedHold(t *testing.T) {
	// GIVEN: A hold already recorded under an idempotency key
	// WHEN: The same key is retried
	// THEN: The stored result is replayed without invoking the driver again

	counting := &countingPort{inner: gateway.NewMock()}
	port := gateway.WithIdempotency(counting, idempotency.NewMemoryStore(), zap.NewNop())
	ctx := context.Background()

	req := gateway.HoldRequest{
		PayerRef:       "card_1",
		Amount:         decimal.RequireFromString("120"),
		Currency:       "EUR",
		IdempotencyKey: "ticket:tck_1:hold",
	}
	first, err := port.Hold(ctx, req)
	require.NoError(t, err)
	second, err := port.Hold(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.Ref, second.Ref)
	assert.Equal(t, 1, counting.holds)
}

func TestMock_DeduplicatesByKey(t *testing.T) {
	// The driver itself also dedups, mirroring processor-side behavior.
	mock := gateway.NewMock()
	ctx := context.Background()

	req := gateway.HoldRequest{Amount: decimal.RequireFromString("50"), Currency: "EUR", IdempotencyKey: "k1"}
	first, err := mock.Hold(ctx, req)
	require.NoError(t, err)
	second, err := mock.Hold(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.Ref, second.Ref)

	other, err := mock.Hold(ctx, gateway.HoldRequest{Amount: req.Amount, Currency: "EUR", IdempotencyKey: "k2"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Ref, other.Ref)
}

func payrailServer(t *testing.T, handler http.HandlerFunc) *gateway.Payrail {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return gateway.NewPayrail(config.GatewayConfig{
		Driver:  config.GatewayDriverPayrail,
		BaseURL: srv.URL,
		APIKey:  "sk_test",
	}, zap.NewNop())
}

func TestPayrail_Hold_SendsAuthorizationWithIdempotencyKey(t *testing.T) {
	// GIVEN: A processor accepting authorizations
	// WHEN: A hold is issued
	// THEN: The request carries auth, idempotency key, and capture=false

	var gotKey, gotAuth string
	var gotBody map[string]any
	driver := payrailServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/authorizations", r.URL.Path)
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{"ref": "auth_123"})
	})

	custody, err := driver.Hold(context.Background(), gateway.HoldRequest{
		PayerRef:       "card_9",
		Amount:         decimal.RequireFromString("120"),
		Currency:       "EUR",
		IdempotencyKey: "ticket:tck_9:hold",
	})
	require.NoError(t, err)
	assert.Equal(t, "auth_123", custody.Ref)
	assert.Equal(t, "payrail", custody.Provider)
	assert.Equal(t, "ticket:tck_9:hold", gotKey)
	assert.Equal(t, "Bearer sk_test", gotAuth)
	assert.Equal(t, false, gotBody["capture"])
	assert.Equal(t, "120", gotBody["amount"])
}

func TestPayrail_Release_CapturesWithFee(t *testing.T) {
	var gotBody map[string]any
	driver := payrailServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/captures", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{"ref": "cap_456"})
	})

	settlement, err := driver.Release(context.Background(), gateway.ReleaseRequest{
		Ref:            "auth_123",
		Amount:         decimal.RequireFromString("150"),
		Fee:            decimal.RequireFromString("3.75"),
		Currency:       "EUR",
		IdempotencyKey: "escrow:esc_1:release",
	})
	require.NoError(t, err)
	assert.Equal(t, "cap_456", settlement.Ref)
	assert.Equal(t, "auth_123", gotBody["authorization_ref"])
	assert.Equal(t, "3.75", gotBody["fee"])
}

func TestPayrail_ServerError_MapsToUnavailable(t *testing.T) {
	driver := payrailServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := driver.Hold(context.Background(), gateway.HoldRequest{
		Amount:   decimal.RequireFromString("10"),
		Currency: "EUR",
	})
	gwErr, ok := gateway.AsError(err)
	require.True(t, ok)
	assert.Equal(t, gateway.ErrorUnavailable, gwErr.Kind)
}

func TestPayrail_Decline_MapsToRejectedKinds(t *testing.T) {
	for _, tc := range []struct {
		code string
		want gateway.ErrorKind
	}{
		{"card_declined", gateway.ErrorRejected},
		{"authentication_required", gateway.ErrorAuthenticationRequired},
	} {
		driver := payrailServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"code": tc.code, "message": "declined"},
			})
		})

		_, err := driver.Hold(context.Background(), gateway.HoldRequest{
			Amount:   decimal.RequireFromString("10"),
			Currency: "EUR",
		})
		gwErr, ok := gateway.AsError(err)
		require.True(t, ok, tc.code)
		assert.Equal(t, tc.want, gwErr.Kind, tc.code)
	}
}
