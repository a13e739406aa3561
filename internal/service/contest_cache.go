package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/contest-radar/backend/internal/domain"
	"github.com/contest-radar/backend/internal/infrastructure"
)

// DefaultCacheTTL is how long a refreshed contest list is served
const DefaultCacheTTL = time.Hour

const refreshKey = "contests"

// Refresher produces a fresh contest list
type Refresher interface {
	Refresh(ctx context.Context) []domain.Contest
}

type cacheEntry struct {
	contests  []domain.Contest
	fetchedAt time.Time
}

// ContestCache is a single-slot TTL cache in front of the aggregator. At most
// one refresh is in flight at a time; concurrent callers share its result.
type ContestCache struct {
	refresher Refresher
	ttl       time.Duration
	now       func() time.Time

	mu    sync.RWMutex
	entry *cacheEntry
	group singleflight.Group

	tracer  trace.Tracer
	metrics *infrastructure.TelemetryMetrics
	logger  *zap.Logger
}

// NewContestCache creates an empty cache
func NewContestCache(
	refresher Refresher,
	ttl time.Duration,
	tracer trace.Tracer,
	metrics *infrastructure.TelemetryMetrics,
	logger *zap.Logger,
) *ContestCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ContestCache{
		refresher: refresher,
		ttl:       ttl,
		now:       time.Now,
		tracer:    tracer,
		metrics:   metrics,
		logger:    logger,
	}
}

// GetContests returns the cached list while it is younger than the TTL and
// refreshes it otherwise. An empty refresh result is cached like any other.
func (c *ContestCache) GetContests(ctx context.Context) []domain.Contest {
	ctx, span := c.tracer.Start(ctx, "ContestCache.GetContests")
	defer span.End()

	if contests, ok := c.fresh(); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		c.recordLookup(ctx, "hit")
		return slices.Clone(contests)
	}

	span.SetAttributes(attribute.Bool("cache.hit", false))
	c.recordLookup(ctx, "miss")

	// The refresh outlives any single caller's cancellation since others may be waiting on it.
	refreshCtx := context.WithoutCancel(ctx)
	v, _, shared := c.group.Do(refreshKey, func() (interface{}, error) {
		if contests, ok := c.fresh(); ok {
			return contests, nil
		}
		contests := c.refresher.Refresh(refreshCtx)
		c.store(contests)
		c.metrics.CacheRefreshes.Add(refreshCtx, 1)
		return contests, nil
	})
	span.SetAttributes(attribute.Bool("cache.shared_refresh", shared))

	return slices.Clone(v.([]domain.Contest))
}

// Invalidate drops the cached list so the next call refreshes
func (c *ContestCache) Invalidate() {
	c.mu.Lock()
	c.entry = nil
	c.mu.Unlock()
	c.logger.Info("Contest cache invalidated")
}

// FetchedAt returns when the cached list was produced, zero when empty
func (c *ContestCache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil {
		return time.Time{}
	}
	return c.entry.fetchedAt
}

func (c *ContestCache) fresh() ([]domain.Contest, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil {
		return nil, false
	}
	if c.now().Sub(c.entry.fetchedAt) >= c.ttl {
		return nil, false
	}
	return c.entry.contests, true
}

func (c *ContestCache) store(contests []domain.Contest) {
	if contests == nil {
		contests = []domain.Contest{}
	}
	c.mu.Lock()
	c.entry = &cacheEntry{contests: contests, fetchedAt: c.now()}
	c.mu.Unlock()

	c.logger.Debug("Contest cache refreshed", zap.Int("contests", len(contests)))
}

func (c *ContestCache) recordLookup(ctx context.Context, result string) {
	c.metrics.CacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
