package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/contest-radar/backend/internal/domain"
	"github.com/contest-radar/backend/internal/stats"
)

type fakeFetcher struct {
	platform domain.Platform
	delay    time.Duration
	inFlight *atomic.Int32
	peak     *atomic.Int32
}

func (f *fakeFetcher) Platform() domain.Platform { return f.platform }

func (f *fakeFetcher) FetchStats(ctx context.Context, handle string) domain.PlatformStats {
	n := f.inFlight.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(f.delay)
	f.inFlight.Add(-1)

	rating := len(handle)
	return domain.PlatformStats{Platform: f.platform, Handle: handle, Success: true, Rating: &rating, History: []domain.RatingPoint{}}
}

func TestStatsService_FetchAll(t *testing.T) {
	var inFlight, peak atomic.Int32
	var fetchers []stats.Fetcher
	for _, p := range domain.Platforms {
		fetchers = append(fetchers, &fakeFetcher{platform: p, delay: 50 * time.Millisecond, inFlight: &inFlight, peak: &peak})
	}
	svc := NewStatsService(fetchers, noop.NewTracerProvider().Tracer("test"), zap.NewNop())

	got := svc.FetchAll(context.Background(), map[domain.Platform]string{
		domain.PlatformCodeforces: "tourist",
		domain.PlatformAtCoder:    "chokudai",
		domain.PlatformLeetCode:   "  ",
		domain.PlatformCodeChef:   "gennady",
	})

	if len(got) != 3 {
		t.Fatalf("want 3 platforms, got %d: %v", len(got), got)
	}
	for _, key := range []string{"codeforces", "atcoder", "codechef"} {
		st, ok := got[key]
		if !ok || !st.Success {
			t.Fatalf("missing or failed %s: %+v", key, st)
		}
	}
	if _, ok := got["leetcode"]; ok {
		t.Fatal("blank handle must not be queried")
	}
	if peak.Load() < 2 {
		t.Fatalf("want platforms fetched concurrently, peak concurrency %d", peak.Load())
	}
}

func TestStatsService_FetchForUser(t *testing.T) {
	var inFlight, peak atomic.Int32
	svc := NewStatsService([]stats.Fetcher{
		&fakeFetcher{platform: domain.PlatformLeetCode, inFlight: &inFlight, peak: &peak},
	}, noop.NewTracerProvider().Tracer("test"), zap.NewNop())

	got := svc.FetchForUser(context.Background(), &domain.User{LeetCodeHandle: "lee215", CodeforcesHandle: "unregistered"})

	if len(got) != 1 || got["leetcode"].Handle != "lee215" {
		t.Fatalf("unexpected result %v", got)
	}
}
