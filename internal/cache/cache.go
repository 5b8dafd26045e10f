package cache

import (
	"context"
	"sync"
	"time"

	"cafepos/internal/domain"
)

// KPICache holds computed KPI sets keyed by their as-of business date.
//
// Writers bump a generation on every invalidation. A reader takes the
// generation before computing and passes it to SetKPIs, which drops the
// value if an invalidation happened in between.
type KPICache interface {
	GetKPIs(ctx context.Context, asOf string) (*domain.KPISet, bool, error)
	KPIGeneration(ctx context.Context) (int64, error)
	SetKPIs(ctx context.Context, kpis domain.KPISet, generation int64, ttl time.Duration) error
	// InvalidateKPIs bumps the generation and drops the sets for the given
	// as-of dates.
	InvalidateKPIs(ctx context.Context, asOf ...string) error
}

type NoopKPICache struct{}

func (NoopKPICache) GetKPIs(_ context.Context, _ string) (*domain.KPISet, bool, error) {
	return nil, false, nil
}

func (NoopKPICache) KPIGeneration(_ context.Context) (int64, error) {
	return 0, nil
}

func (NoopKPICache) SetKPIs(_ context.Context, _ domain.KPISet, _ int64, _ time.Duration) error {
	return nil
}

func (NoopKPICache) InvalidateKPIs(_ context.Context, _ ...string) error {
	return nil
}

type memoryEntry struct {
	kpis      domain.KPISet
	expiresAt time.Time
}

// MemoryKPICache is the in-process cache used when no Redis is configured.
type MemoryKPICache struct {
	mu      sync.Mutex
	entries    map[string]memoryEntry
	generation int64
	now        func() time.Time
}

func NewMemoryKPICache() *MemoryKPICache {
	return &MemoryKPICache{
		entries: map[string]memoryEntry{},
		now:     time.Now,
	}
}

func (c *MemoryKPICache) GetKPIs(_ context.Context, asOf string) (*domain.KPISet, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[asOf]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		delete(c.entries, asOf)
		return nil, false, nil
	}
	kpis := entry.kpis
	return &kpis, true, nil
}

func (c *MemoryKPICache) KPIGeneration(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation, nil
}

func (c *MemoryKPICache) SetKPIs(_ context.Context, kpis domain.KPISet, generation int64, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return nil
	}
	c.entries[kpis.AsOf] = memoryEntry{kpis: kpis, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryKPICache) InvalidateKPIs(_ context.Context, asOf ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	for _, day := range asOf {
		delete(c.entries, day)
	}
	return nil
}
