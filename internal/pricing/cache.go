package pricing

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/linemk/shop-orders/internal/domain/money"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

type cachedRate struct {
	rate      decimal.Decimal
	expiresAt time.Time
}

// CachedProvider опрашивает источники по порядку и кэширует курс на ttl.
// Одновременные промахи по одной паре схлопываются в один запрос.
type CachedProvider struct {
	log     *slog.Logger
	sources []Provider
	ttl     time.Duration
	now     func() time.Time

	mu    sync.RWMutex
	items map[string]cachedRate
	group singleflight.Group
}

func NewCachedProvider(log *slog.Logger, ttl time.Duration, sources ...Provider) *CachedProvider {
	return &CachedProvider{
		log:     log,
		sources: sources,
		ttl:     ttl,
		now:     time.Now,
		items:   make(map[string]cachedRate),
	}
}

func (p *CachedProvider) GetExchangeRate(ctx context.Context, from, to money.Currency) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	key := pairKey(from, to)
	if rate, ok := p.get(key); ok {
		return rate, nil
	}

	// общий запрос не зависит от отмены контекста того, кто его запустил
	fetchCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(key, func() (interface{}, error) {
		if rate, ok := p.get(key); ok {
			return rate, nil
		}
		rate, err := p.fetch(fetchCtx, from, to)
		if err != nil {
			return decimal.Decimal{}, err
		}
		p.set(key, rate)
		return rate, nil
	})

	select {
	case <-ctx.Done():
		return decimal.Decimal{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return decimal.Decimal{}, res.Err
		}
		return res.Val.(decimal.Decimal), nil
	}
}

func (p *CachedProvider) fetch(ctx context.Context, from, to money.Currency) (decimal.Decimal, error) {
	const op = "pricing.CachedProvider.fetch"
	logger := p.log.With(slog.String("op", op), slog.String("from", string(from)), slog.String("to", string(to)))

	var lastErr error = ErrRateNotFound
	for _, src := range p.sources {
		rate, err := src.GetExchangeRate(ctx, from, to)
		if err == nil {
			return rate, nil
		}
		// недоступный redis не должен ломать оформление, если есть статический курс
		if !errors.Is(err, ErrRateNotFound) {
			logger.Warn("rate source failed", slog.Any("error", err))
		}
		lastErr = err
	}
	return decimal.Decimal{}, lastErr
}

func (p *CachedProvider) get(key string) (decimal.Decimal, bool) {
	p.mu.RLock()
	item, ok := p.items[key]
	p.mu.RUnlock()
	if !ok || p.now().After(item.expiresAt) {
		return decimal.Decimal{}, false
	}
	return item.rate, true
}

func (p *CachedProvider) set(key string, rate decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[key] = cachedRate{rate: rate, expiresAt: p.now().Add(p.ttl)}
}
