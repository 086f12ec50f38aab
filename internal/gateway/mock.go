package gateway

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ProviderMock is the provider name recorded on escrows held by the mock.
const ProviderMock = "mock"

// Mock is the deterministic in-process driver used in tests and staging.
// It always succeeds and generates locally unique references. The guard
// against loading it in production lives in New, at construction time.
type Mock struct {
	mu       sync.Mutex
	holds    map[string]Custody
	releases map[string]Settlement
	now      func() time.Time
}

// NewMock constructs the mock driver.
func NewMock() *Mock {
	return &Mock{
		holds:    make(map[string]Custody),
		releases: make(map[string]Settlement),
		now:      time.Now,
	}
}

// Provider returns the driver name.
func (m *Mock) Provider() string {
	return ProviderMock
}

// Hold reserves funds. Replays with a known idempotency key return the
// original custody record.
func (m *Mock) Hold(_ context.Context, req HoldRequest) (Custody, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prior, ok := m.holds[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return prior, nil
	}
	custody := Custody{
		Provider: ProviderMock,
		Ref:      "mock_auth_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		HeldAt:   m.now().UTC(),
	}
	if req.IdempotencyKey != "" {
		m.holds[req.IdempotencyKey] = custody
	}
	return custody, nil
}

// Release settles previously held funds.
func (m *Mock) Release(_ context.Context, req ReleaseRequest) (Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prior, ok := m.releases[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return prior, nil
	}
	settlement := Settlement{
		Provider:   ProviderMock,
		Ref:        "mock_capture_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		ReleasedAt: m.now().UTC(),
	}
	if req.IdempotencyKey != "" {
		m.releases[req.IdempotencyKey] = settlement
	}
	return settlement, nil
}
