package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/contest-radar/backend/internal/domain"
	"github.com/contest-radar/backend/internal/infrastructure"
	"github.com/contest-radar/backend/internal/source"
)

// Aggregator merges the contest listings of every source
type Aggregator struct {
	sources []source.Source
	timeout time.Duration
	now     func() time.Time
	tracer  trace.Tracer
	metrics *infrastructure.TelemetryMetrics
	logger  *zap.Logger
}

// NewAggregator creates an aggregator over the given sources. Source order is
// the tie-break order for contests starting at the same instant.
func NewAggregator(
	sources []source.Source,
	timeout time.Duration,
	tracer trace.Tracer,
	metrics *infrastructure.TelemetryMetrics,
	logger *zap.Logger,
) *Aggregator {
	if timeout <= 0 {
		timeout = source.DefaultTimeout
	}
	return &Aggregator{
		sources: sources,
		timeout: timeout,
		now:     time.Now,
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

type sourceResult struct {
	contests []domain.Contest
	err      error
	elapsed  time.Duration
}

// Refresh fetches every source concurrently, waits for all of them to settle,
// and returns the windowed contests sorted by start time. Failed sources
// contribute nothing.
func (a *Aggregator) Refresh(ctx context.Context) []domain.Contest {
	ctx, span := a.tracer.Start(ctx, "Aggregator.Refresh")
	defer span.End()

	results := make([]sourceResult, len(a.sources))
	var wg sync.WaitGroup

	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src source.Source) {
			defer wg.Done()
			results[i] = a.fetchOne(ctx, src)
		}(i, src)
	}
	wg.Wait()

	windowStart, windowEnd := domain.ContestWindow(a.now())
	var merged []domain.Contest
	failed := 0

	for i, res := range results {
		platform := a.sources[i].Platform()
		outcome := "ok"
		if res.err != nil {
			failed++
			outcome = "error"
			a.logger.Warn("Contest source failed",
				zap.String("platform", string(platform)),
				zap.Duration("elapsed", res.elapsed),
				zap.Error(res.err),
			)
		}
		a.metrics.SourceFetchDuration.Record(ctx, res.elapsed.Seconds(),
			metric.WithAttributes(
				attribute.String("platform", string(platform)),
				attribute.String("outcome", outcome),
			),
		)

		for _, c := range res.contests {
			if domain.InWindow(c.StartTime, windowStart, windowEnd) {
				merged = append(merged, c)
			}
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].StartTime.Before(merged[j].StartTime)
	})

	if merged == nil {
		merged = []domain.Contest{}
	}

	span.SetAttributes(
		attribute.Int("sources.total", len(a.sources)),
		attribute.Int("sources.failed", failed),
		attribute.Int("contests.count", len(merged)),
	)
	if failed == len(a.sources) && failed > 0 {
		span.SetStatus(codes.Error, "all contest sources failed")
		a.logger.Error("All contest sources failed, serving empty list",
			zap.Int("sources", failed),
		)
	}

	a.logger.Info("Contests aggregated",
		zap.Int("contests", len(merged)),
		zap.Int("failed_sources", failed),
		zap.Time("window_start", windowStart),
		zap.Time("window_end", windowEnd),
	)

	return merged
}

// fetchOne runs a single source under its own timeout. A panicking source is
// reported as a failed fetch.
func (a *Aggregator) fetchOne(ctx context.Context, src source.Source) (res sourceResult) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		res.elapsed = time.Since(start)
		if r := recover(); r != nil {
			a.logger.Error("Contest source panicked",
				zap.String("platform", string(src.Platform())),
				zap.Any("panic", r),
			)
			res.contests = nil
			res.err = domain.NewFetchError(src.Platform(), domain.ErrInternalServer)
		}
	}()

	contests, err := src.Fetch(ctx)
	if err != nil {
		return sourceResult{err: err}
	}
	return sourceResult{contests: contests}
}
