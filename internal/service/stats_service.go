package service

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/contest-radar/backend/internal/domain"
	"github.com/contest-radar/backend/internal/stats"
)

// StatsService fans a user's handles out to the per-platform fetchers
type StatsService struct {
	fetchers map[domain.Platform]stats.Fetcher
	tracer   trace.Tracer
	logger   *zap.Logger
}

// NewStatsService creates a new stats service
func NewStatsService(fetchers []stats.Fetcher, tracer trace.Tracer, logger *zap.Logger) *StatsService {
	byPlatform := make(map[domain.Platform]stats.Fetcher, len(fetchers))
	for _, f := range fetchers {
		byPlatform[f.Platform()] = f
	}
	return &StatsService{
		fetchers: byPlatform,
		tracer:   tracer,
		logger:   logger,
	}
}

// FetchAll queries every platform with a non-blank handle in parallel. The
// result is keyed by lowercase platform name and only holds queried platforms.
func (s *StatsService) FetchAll(ctx context.Context, handles map[domain.Platform]string) map[string]domain.PlatformStats {
	ctx, span := s.tracer.Start(ctx, "StatsService.FetchAll")
	defer span.End()

	result := make(map[string]domain.PlatformStats, len(handles))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for platform, handle := range handles {
		handle = strings.TrimSpace(handle)
		if handle == "" {
			continue
		}
		fetcher, ok := s.fetchers[platform]
		if !ok {
			s.logger.Warn("No stats fetcher registered", zap.String("platform", string(platform)))
			continue
		}

		wg.Add(1)
		go func(f stats.Fetcher, handle string) {
			defer wg.Done()
			st := f.FetchStats(ctx, handle)

			mu.Lock()
			result[f.Platform().Key()] = st
			mu.Unlock()
		}(fetcher, handle)
	}
	wg.Wait()

	span.SetAttributes(attribute.Int("stats.platforms", len(result)))
	return result
}

// FetchForUser queries the handles stored on the user's profile
func (s *StatsService) FetchForUser(ctx context.Context, user *domain.User) map[string]domain.PlatformStats {
	return s.FetchAll(ctx, user.Handles())
}
