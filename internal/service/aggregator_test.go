package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/contest-radar/backend/internal/domain"
	"github.com/contest-radar/backend/internal/infrastructure"
	"github.com/contest-radar/backend/internal/source"
)

var testNow = time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC)

// fakeSource is a scripted source.Source
type fakeSource struct {
	platform domain.Platform
	contests []domain.Contest
	err      error
	delay    time.Duration
	calls    atomic.Int32
}

func (f *fakeSource) Platform() domain.Platform { return f.platform }

func (f *fakeSource) Fetch(ctx context.Context) ([]domain.Contest, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, domain.NewFetchError(f.platform, ctx.Err())
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.contests, nil
}

func contestAt(p domain.Platform, title string, start time.Time) domain.Contest {
	return domain.NewContest(p, title, start, start.Add(2*time.Hour), "test", "https://example.com/"+title)
}

func newTestAggregator(timeout time.Duration, sources ...source.Source) *Aggregator {
	a := NewAggregator(sources, timeout, noop.NewTracerProvider().Tracer("test"), infrastructure.NoopMetrics(), zap.NewNop())
	a.now = func() time.Time { return testNow }
	return a
}

func assertSorted(t *testing.T, contests []domain.Contest) {
	t.Helper()
	for i := 1; i < len(contests); i++ {
		if contests[i].StartTime.Before(contests[i-1].StartTime) {
			t.Fatalf("not sorted at %d: %v before %v", i, contests[i].StartTime, contests[i-1].StartTime)
		}
	}
}

func TestAggregator_OneSourceTimesOut(t *testing.T) {
	cf := &fakeSource{platform: domain.PlatformCodeforces, contests: []domain.Contest{
		contestAt(domain.PlatformCodeforces, "cf-late", testNow.Add(72*time.Hour)),
		contestAt(domain.PlatformCodeforces, "cf-early", testNow.Add(2*time.Hour)),
	}}
	at := &fakeSource{platform: domain.PlatformAtCoder, delay: 5 * time.Second}
	lc := &fakeSource{platform: domain.PlatformLeetCode, contests: []domain.Contest{
		contestAt(domain.PlatformLeetCode, "lc", testNow.Add(24*time.Hour)),
	}}
	cc := &fakeSource{platform: domain.PlatformCodeChef, contests: []domain.Contest{
		contestAt(domain.PlatformCodeChef, "cc", testNow.Add(-48*time.Hour)),
	}}

	start := time.Now()
	got := newTestAggregator(100*time.Millisecond, cf, at, lc, cc).Refresh(context.Background())
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("slow source blocked aggregation for %v", elapsed)
	}

	if len(got) != 4 {
		t.Fatalf("want 4 contests from the three healthy sources, got %d", len(got))
	}
	assertSorted(t, got)
	for _, c := range got {
		if c.Platform == domain.PlatformAtCoder {
			t.Fatal("timed out source must contribute nothing")
		}
	}
	if got[0].Title != "cc" || got[3].Title != "cf-late" {
		t.Fatalf("unexpected order: %s ... %s", got[0].Title, got[3].Title)
	}
}

func TestAggregator_WindowFilter(t *testing.T) {
	cf := &fakeSource{platform: domain.PlatformCodeforces, contests: []domain.Contest{
		contestAt(domain.PlatformCodeforces, "last-month", time.Date(2026, time.September, 10, 14, 0, 0, 0, time.UTC)),
		contestAt(domain.PlatformCodeforces, "this-month", time.Date(2026, time.October, 25, 14, 0, 0, 0, time.UTC)),
		contestAt(domain.PlatformCodeforces, "three-months-out", time.Date(2027, time.January, 15, 14, 0, 0, 0, time.UTC)),
		contestAt(domain.PlatformCodeforces, "archive", time.Date(2019, time.March, 1, 14, 0, 0, 0, time.UTC)),
	}}

	got := newTestAggregator(time.Second, cf).Refresh(context.Background())
	if len(got) != 2 {
		t.Fatalf("want 2 contests inside the window, got %d", len(got))
	}
	if got[0].Title != "last-month" || got[1].Title != "this-month" {
		t.Fatalf("unexpected contests %s, %s", got[0].Title, got[1].Title)
	}
}

func TestAggregator_StableTieOrder(t *testing.T) {
	at := testNow.Add(30 * time.Hour)
	cf := &fakeSource{platform: domain.PlatformCodeforces, contests: []domain.Contest{contestAt(domain.PlatformCodeforces, "first", at)}}
	lc := &fakeSource{platform: domain.PlatformLeetCode, contests: []domain.Contest{contestAt(domain.PlatformLeetCode, "second", at)}}
	cc := &fakeSource{platform: domain.PlatformCodeChef, contests: []domain.Contest{contestAt(domain.PlatformCodeChef, "third", at)}}

	got := newTestAggregator(time.Second, cf, lc, cc).Refresh(context.Background())
	if len(got) != 3 || got[0].Title != "first" || got[1].Title != "second" || got[2].Title != "third" {
		t.Fatalf("want insertion order on ties, got %v", got)
	}
}

func TestAggregator_AllSourcesFail(t *testing.T) {
	boom := errors.New("boom")
	got := newTestAggregator(time.Second,
		&fakeSource{platform: domain.PlatformCodeforces, err: boom},
		&fakeSource{platform: domain.PlatformAtCoder, err: boom},
		&fakeSource{platform: domain.PlatformLeetCode, err: boom},
		&fakeSource{platform: domain.PlatformCodeChef, err: boom},
	).Refresh(context.Background())

	if got == nil || len(got) != 0 {
		t.Fatalf("want empty non-nil list, got %#v", got)
	}
}

type panickingSource struct{}

func (panickingSource) Platform() domain.Platform { return domain.PlatformAtCoder }

func (panickingSource) Fetch(context.Context) ([]domain.Contest, error) { panic("bad adapter") }

func TestAggregator_PanickingSourceIsContained(t *testing.T) {
	cf := &fakeSource{platform: domain.PlatformCodeforces, contests: []domain.Contest{
		contestAt(domain.PlatformCodeforces, "cf", testNow.Add(time.Hour)),
	}}
	got := newTestAggregator(time.Second, cf, panickingSource{}).Refresh(context.Background())
	if len(got) != 1 {
		t.Fatalf("want 1 contest, got %d", len(got))
	}
}
