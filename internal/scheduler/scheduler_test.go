package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/contest-radar/backend/internal/domain"
	"github.com/contest-radar/backend/internal/infrastructure"
	"github.com/contest-radar/backend/internal/notify"
)

var tickTime = time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC)

type fakeContests struct {
	contests []domain.Contest
	started  chan struct{}
	release  chan struct{}
}

func (f *fakeContests) GetContests(ctx context.Context) []domain.Contest {
	if f.started != nil {
		close(f.started)
		f.started = nil
	}
	if f.release != nil {
		<-f.release
	}
	return f.contests
}

// fakeStore returns fresh copies on every listing, like a database would
type fakeStore struct {
	mu        sync.Mutex
	users     []domain.User
	records   []domain.NotificationRecord
	failFor   uuid.UUID
	listError error
}

func (s *fakeStore) ListForReminders(ctx context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listError != nil {
		return nil, s.listError
	}
	out := make([]domain.User, len(s.users))
	for i, u := range s.users {
		u.NotificationHistory = nil
		for _, r := range s.records {
			if r.UserID == u.ID {
				u.NotificationHistory = append(u.NotificationHistory, r)
			}
		}
		out[i] = u
	}
	return out, nil
}

func (s *fakeStore) AppendNotification(ctx context.Context, record *domain.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.UserID == s.failFor {
		return errors.New("connection reset")
	}
	s.records = append(s.records, *record)
	return nil
}

type fakeChannel struct {
	name  domain.Channel
	ok    bool
	mu    sync.Mutex
	sends []string
}

func (c *fakeChannel) Name() domain.Channel { return c.name }

func (c *fakeChannel) Send(ctx context.Context, destination, subject, body string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends = append(c.sends, destination+"|"+subject)
	return c.ok
}

func (c *fakeChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sends)
}

type fakeLocker struct {
	acquire  bool
	locks    int
	unlocks  int
	tryError error
}

func (l *fakeLocker) TryLock(ctx context.Context) (bool, error) {
	l.locks++
	return l.acquire, l.tryError
}

func (l *fakeLocker) Unlock(ctx context.Context) error {
	l.unlocks++
	return nil
}

func newUser(channels, reminders []string) domain.User {
	return domain.User{
		ID:        uuid.New(),
		Email:     "coder@example.com",
		Phone:     "+15550001",
		Channels:  channels,
		Reminders: reminders,
	}
}

func startingIn(title string, hours float64) domain.Contest {
	start := tickTime.Add(time.Duration(hours * float64(time.Hour)))
	return domain.NewContest(domain.PlatformCodeforces, title, start, start.Add(2*time.Hour), "Div 2", "https://codeforces.com/contest/1")
}

func newTestScheduler(contests domain.ContestProvider, store UserStore, locker Locker, channels ...notify.Channel) *Scheduler {
	s := New(contests, store, notify.NewRegistry(channels...), locker, time.Hour,
		noop.NewTracerProvider().Tracer("test"), infrastructure.NoopMetrics(), zap.NewNop())
	s.now = func() time.Time { return tickTime }
	return s
}

func TestRunOnce_DedupAcrossTicks(t *testing.T) {
	store := &fakeStore{users: []domain.User{newUser([]string{"email"}, []string{"oneDay"})}}
	email := &fakeChannel{name: domain.ChannelEmail, ok: true}
	s := newTestScheduler(&fakeContests{contests: []domain.Contest{startingIn("Round 900", 24)}}, store, nil, email)

	first, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("first tick: %v", err)
	}
	second, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second tick: %v", err)
	}

	if first.Sent != 1 || second.Sent != 0 || second.SkippedDuplicate != 1 {
		t.Fatalf("unexpected results %+v then %+v", first, second)
	}
	if email.count() != 1 {
		t.Fatalf("want exactly one delivery, got %d", email.count())
	}
	if len(store.records) != 1 {
		t.Fatalf("want one history record, got %d", len(store.records))
	}
	rec := store.records[0]
	if rec.ContestKey != "Round 900" || rec.Kind != domain.ReminderOneDay || rec.Channel != "EMAIL" || rec.Status != domain.NotificationSent {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestRunOnce_WindowBoundaries(t *testing.T) {
	store := &fakeStore{users: []domain.User{newUser([]string{"email"}, []string{"oneDay", "twoDays"})}}
	email := &fakeChannel{name: domain.ChannelEmail, ok: true}
	contests := []domain.Contest{
		startingIn("too-early", 23.4),
		startingIn("inside", 23.6),
		startingIn("upper-edge", 24.5),
		startingIn("too-late", 24.6),
		startingIn("two-days-edge", 47.5),
		startingIn("gap", 36),
		startingIn("started", -1),
	}
	s := newTestScheduler(&fakeContests{contests: contests}, store, nil, email)

	got, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got.Sent != 3 {
		t.Fatalf("want 3 reminders, got %+v", got)
	}

	sent := map[string]domain.ReminderKind{}
	for _, r := range store.records {
		sent[r.ContestKey] = r.Kind
	}
	want := map[string]domain.ReminderKind{
		"inside":        domain.ReminderOneDay,
		"upper-edge":    domain.ReminderOneDay,
		"two-days-edge": domain.ReminderTwoDays,
	}
	for title, kind := range want {
		if sent[title] != kind {
			t.Fatalf("%s: want %s, got %q", title, kind, sent[title])
		}
	}
}

func TestRunOnce_DeliveryFailureWritesNoHistory(t *testing.T) {
	store := &fakeStore{users: []domain.User{newUser([]string{"email"}, []string{"oneDay"})}}
	email := &fakeChannel{name: domain.ChannelEmail, ok: false}
	s := newTestScheduler(&fakeContests{contests: []domain.Contest{startingIn("Round 901", 24)}}, store, nil, email)

	got, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got.Failed != 1 || got.Sent != 0 || len(store.records) != 0 {
		t.Fatalf("want failure without history, got %+v / %d records", got, len(store.records))
	}

	email.ok = true
	got, _ = s.RunOnce(context.Background())
	if got.Sent != 1 {
		t.Fatalf("want retry on the next tick to send, got %+v", got)
	}
}

func TestRunOnce_UserWithoutChannelsIsSkipped(t *testing.T) {
	store := &fakeStore{users: []domain.User{
		newUser(nil, []string{"oneDay"}),
		newUser([]string{"pager"}, []string{"oneDay"}),
	}}
	email := &fakeChannel{name: domain.ChannelEmail, ok: true}
	s := newTestScheduler(&fakeContests{contests: []domain.Contest{startingIn("Round 902", 24)}}, store, nil, email)

	got, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got.UsersScanned != 0 || email.count() != 0 {
		t.Fatalf("want no users scanned, got %+v", got)
	}
}

func TestRunOnce_UnregisteredChannelCountsAsFailure(t *testing.T) {
	store := &fakeStore{users: []domain.User{newUser([]string{"sms"}, []string{"oneDay"})}}
	email := &fakeChannel{name: domain.ChannelEmail, ok: true}
	s := newTestScheduler(&fakeContests{contests: []domain.Contest{startingIn("Round 903", 24)}}, store, nil, email)

	got, _ := s.RunOnce(context.Background())
	if got.Failed != 1 || email.count() != 0 {
		t.Fatalf("want one failure and no email, got %+v", got)
	}
}

func TestRunOnce_MultipleChannelsShareOneRecord(t *testing.T) {
	store := &fakeStore{users: []domain.User{newUser([]string{"sms", "email", "EMAIL"}, []string{"oneDay"})}}
	email := &fakeChannel{name: domain.ChannelEmail, ok: true}
	sms := &fakeChannel{name: domain.ChannelSMS, ok: true}
	s := newTestScheduler(&fakeContests{contests: []domain.Contest{startingIn("Round 904", 24)}}, store, nil, email, sms)

	got, _ := s.RunOnce(context.Background())
	if got.Sent != 1 || len(store.records) != 1 {
		t.Fatalf("want one record, got %+v / %d", got, len(store.records))
	}
	if store.records[0].Channel != "SMS,EMAIL" {
		t.Fatalf("unexpected channel label %q", store.records[0].Channel)
	}
	if email.count() != 1 || sms.count() != 1 {
		t.Fatalf("want one send per channel, got email=%d sms=%d", email.count(), sms.count())
	}
}

func TestRunOnce_PersistFailureDoesNotAbortTick(t *testing.T) {
	broken := newUser([]string{"email"}, []string{"oneDay"})
	healthy := newUser([]string{"email"}, []string{"oneDay"})
	store := &fakeStore{users: []domain.User{broken, healthy}, failFor: broken.ID}
	email := &fakeChannel{name: domain.ChannelEmail, ok: true}
	s := newTestScheduler(&fakeContests{contests: []domain.Contest{startingIn("Round 905", 24)}}, store, nil, email)

	got, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got.UsersScanned != 2 || email.count() != 2 {
		t.Fatalf("want both users processed, got %+v", got)
	}
	if len(store.records) != 1 || store.records[0].UserID != healthy.ID {
		t.Fatalf("want only the healthy user's record, got %+v", store.records)
	}
}

func TestRunOnce_DuplicateTitlesSendOnce(t *testing.T) {
	store := &fakeStore{users: []domain.User{newUser([]string{"email"}, []string{"oneDay"})}}
	email := &fakeChannel{name: domain.ChannelEmail, ok: true}
	contests := []domain.Contest{startingIn("Weekly Contest 400", 24), startingIn("Weekly Contest 400", 24.2)}
	s := newTestScheduler(&fakeContests{contests: contests}, store, nil, email)

	got, _ := s.RunOnce(context.Background())
	if got.Sent != 1 || got.SkippedDuplicate != 1 {
		t.Fatalf("want same-key contests deduplicated within a tick, got %+v", got)
	}
}

func TestRunOnce_OverlapGuard(t *testing.T) {
	store := &fakeStore{}
	contests := &fakeContests{started: make(chan struct{}), release: make(chan struct{})}
	started := contests.started
	s := newTestScheduler(contests, store, nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background())
		done <- err
	}()
	<-started

	if _, err := s.RunOnce(context.Background()); !errors.Is(err, domain.ErrTickInProgress) {
		t.Fatalf("want ErrTickInProgress, got %v", err)
	}
	close(contests.release)
	if err := <-done; err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("tick after the first finished: %v", err)
	}
}

func TestRunOnce_SharedLock(t *testing.T) {
	store := &fakeStore{}
	held := &fakeLocker{acquire: false}
	s := newTestScheduler(&fakeContests{}, store, held)
	if _, err := s.RunOnce(context.Background()); !IsSkipped(err) {
		t.Fatalf("want skip when another replica holds the lock, got %v", err)
	}
	if held.unlocks != 0 {
		t.Fatal("must not release a lock it never acquired")
	}

	free := &fakeLocker{acquire: true}
	s = newTestScheduler(&fakeContests{}, store, free)
	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if free.locks != 1 || free.unlocks != 1 {
		t.Fatalf("want lock and unlock once, got %d/%d", free.locks, free.unlocks)
	}

	broken := &fakeLocker{tryError: errors.New("redis down")}
	s = newTestScheduler(&fakeContests{}, store, broken)
	if _, err := s.RunOnce(context.Background()); err == nil || IsSkipped(err) {
		t.Fatalf("want lock error surfaced, got %v", err)
	}
}

func TestRunOnce_ListFailure(t *testing.T) {
	store := &fakeStore{listError: errors.New("db down")}
	s := newTestScheduler(&fakeContests{}, store, nil)
	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("want error when users cannot be loaded")
	}
}

func TestReminderMessage(t *testing.T) {
	c := domain.NewContest(domain.PlatformAtCoder, "ABC 400",
		time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC), time.Time{}, "beginner", "https://atcoder.jp/contests/abc400")

	subject, body := reminderMessage(c)
	if subject != "Upcoming Contest: ABC 400" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if want := "Don't forget! ABC 400 on AtCoder starts at Sun, 18 Oct 2026 12:00:00 UTC."; body != want {
		t.Fatalf("unexpected body\nwant %q\ngot  %q", want, body)
	}
}

func TestUntilNextBoundary(t *testing.T) {
	s := newTestScheduler(&fakeContests{}, &fakeStore{}, nil)
	s.now = func() time.Time { return time.Date(2026, time.October, 14, 10, 20, 0, 0, time.UTC) }
	if got := s.untilNextBoundary(); got != 40*time.Minute {
		t.Fatalf("want 40m, got %v", got)
	}
	s.now = func() time.Time { return tickTime }
	if got := s.untilNextBoundary(); got != time.Hour {
		t.Fatalf("want a full interval on the boundary, got %v", got)
	}
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler(&fakeContests{}, &fakeStore{}, nil)
	s.Start(context.Background())

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	s.Stop()
}
