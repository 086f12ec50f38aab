package gateway

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-escrow/internal/idempotency"
)

// idempotentPort replays recorded results for idempotency keys already seen,
// without invoking the underlying driver again. Combined with the
// processor-side Idempotency-Key header this keeps a retried hold or release
// from ever double-moving money.
type idempotentPort struct {
	inner  Port
	store  idempotency.Store
	logger *zap.Logger
}

// WithIdempotency wraps a driver with the replay cache. A nil store returns
// the driver unwrapped.
func WithIdempotency(inner Port, store idempotency.Store, logger *zap.Logger) Port {
	if store == nil {
		return inner
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &idempotentPort{inner: inner, store: store, logger: logger}
}

func (p *idempotentPort) Provider() string {
	return p.inner.Provider()
}

func (p *idempotentPort) Hold(ctx context.Context, req HoldRequest) (Custody, error) {
	var custody Custody
	replayed, err := p.replay(ctx, "hold:"+req.IdempotencyKey, &custody)
	if err == nil && replayed {
		return custody, nil
	}
	custody, err = p.inner.Hold(ctx, req)
	if err != nil {
		return Custody{}, err
	}
	p.record(ctx, "hold:"+req.IdempotencyKey, custody)
	return custody, nil
}

func (p *idempotentPort) Release(ctx context.Context, req ReleaseRequest) (Settlement, error) {
	var settlement Settlement
	replayed, err := p.replay(ctx, "release:"+req.IdempotencyKey, &settlement)
	if err == nil && replayed {
		return settlement, nil
	}
	settlement, err = p.inner.Release(ctx, req)
	if err != nil {
		return Settlement{}, err
	}
	p.record(ctx, "release:"+req.IdempotencyKey, settlement)
	return settlement, nil
}

func (p *idempotentPort) replay(ctx context.Context, key string, out any) (bool, error) {
	raw, found, err := p.store.Get(ctx, key)
	if err != nil {
		p.logger.Warn("idempotency lookup failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		p.logger.Error("recorded idempotency result unreadable", zap.String("key", key), zap.Error(err))
		return false, err
	}
	p.logger.Info("gateway call replayed from idempotency store", zap.String("key", key))
	return true, nil
}

func (p *idempotentPort) record(ctx context.Context, key string, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		p.logger.Error("marshal idempotency result", zap.String("key", key), zap.Error(err))
		return
	}
	if err := p.store.Put(ctx, key, raw); err != nil {
		// The processor still deduplicates on its own key; losing the local
		// record costs an extra round-trip, not a double spend.
		p.logger.Warn("persist idempotency result", zap.String("key", key), zap.Error(err))
	}
}
