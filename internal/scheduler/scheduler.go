// Package scheduler runs the reminder job. Each tick matches every user's
// enabled reminder kinds against the upcoming contests and sends at most one
// reminder per (user, contest, kind).
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/contest-radar/backend/internal/domain"
	"github.com/contest-radar/backend/internal/infrastructure"
	"github.com/contest-radar/backend/internal/notify"
)

// DefaultInterval is the tick cadence
const DefaultInterval = time.Hour

// UserStore is the part of the user repository the scheduler uses
type UserStore interface {
	ListForReminders(ctx context.Context) ([]domain.User, error)
	AppendNotification(ctx context.Context, record *domain.NotificationRecord) error
}

// TickResult summarises one pass
type TickResult struct {
	UsersScanned     int `json:"usersScanned"`
	Sent             int `json:"sent"`
	SkippedDuplicate int `json:"skippedDuplicate"`
	Failed           int `json:"failed"`
}

// Scheduler dispatches contest reminders on a fixed cadence
type Scheduler struct {
	contests domain.ContestProvider
	users    UserStore
	channels *notify.Registry
	locker   Locker
	interval time.Duration
	now      func() time.Time

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	tracer  trace.Tracer
	metrics *infrastructure.TelemetryMetrics
	logger  *zap.Logger
}

// New creates a scheduler. locker may be nil when a single process runs the job.
func New(
	contests domain.ContestProvider,
	users UserStore,
	channels *notify.Registry,
	locker Locker,
	interval time.Duration,
	tracer trace.Tracer,
	metrics *infrastructure.TelemetryMetrics,
	logger *zap.Logger,
) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		contests: contests,
		users:    users,
		channels: channels,
		locker:   locker,
		interval: interval,
		now:      time.Now,
		tracer:   tracer,
		metrics:  metrics,
		logger:   logger,
	}
}

// Start runs the loop in the background until Stop or ctx is done
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		s.Run(ctx)
	}(s.done)
}

// Stop cancels the loop and waits for an in-flight tick to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run ticks at every interval boundary until ctx is canceled
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Reminder scheduler started", zap.Duration("interval", s.interval))

	for {
		wait := s.untilNextBoundary()
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("Reminder scheduler stopping")
			return
		case <-timer.C:
			tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.interval)
			if _, err := s.RunOnce(tickCtx); IsSkipped(err) {
				s.logger.Info("Reminder tick skipped, previous pass still running")
			} else if err != nil {
				s.logger.Error("Reminder tick failed", zap.Error(err))
			}
			cancel()
		}
	}
}

func (s *Scheduler) untilNextBoundary() time.Duration {
	now := s.now()
	return now.Truncate(s.interval).Add(s.interval).Sub(now)
}

// RunOnce performs a single pass. It returns ErrTickInProgress when another
// pass holds the in-process guard or the shared lock.
func (s *Scheduler) RunOnce(ctx context.Context) (TickResult, error) {
	var result TickResult

	if !s.running.CompareAndSwap(false, true) {
		return result, domain.ErrTickInProgress
	}
	defer s.running.Store(false)

	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx)
		if err != nil {
			return result, err
		}
		if !ok {
			return result, domain.ErrTickInProgress
		}
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("Failed to release tick lock", zap.Error(err))
			}
		}()
	}

	ctx, span := s.tracer.Start(ctx, "Scheduler.RunOnce")
	defer span.End()
	start := time.Now()

	contests := s.contests.GetContests(ctx)
	users, err := s.users.ListForReminders(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load users")
		return result, fmt.Errorf("loading users: %w", err)
	}

	now := s.now()
	for i := range users {
		s.processUser(ctx, &users[i], contests, now, &result)
	}

	elapsed := time.Since(start)
	s.metrics.TickDuration.Record(ctx, elapsed.Seconds())
	span.SetAttributes(
		attribute.Int("tick.users", result.UsersScanned),
		attribute.Int("tick.sent", result.Sent),
		attribute.Int("tick.failed", result.Failed),
	)

	s.logger.Info("Reminder tick complete",
		zap.Int("contests", len(contests)),
		zap.Int("users_scanned", result.UsersScanned),
		zap.Int("sent", result.Sent),
		zap.Int("skipped_duplicate", result.SkippedDuplicate),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", elapsed),
	)
	return result, nil
}

func (s *Scheduler) processUser(ctx context.Context, user *domain.User, contests []domain.Contest, now time.Time, result *TickResult) {
	channels := user.EnabledChannels()
	if len(channels) == 0 {
		return
	}
	kinds := user.EnabledReminders()
	result.UsersScanned++

	for _, contest := range contests {
		hours := contest.StartTime.Sub(now).Hours()

		for _, kind := range kinds {
			window, ok := kind.Window()
			if !ok || !window.Contains(hours) {
				continue
			}

			key := contest.Key()
			if user.HasSent(key, kind) {
				result.SkippedDuplicate++
				continue
			}

			confirmed := s.deliver(ctx, user, channels, contest)
			attrs := metric.WithAttributes(attribute.String("kind", string(kind)))
			if len(confirmed) == 0 {
				result.Failed++
				s.metrics.RemindersFailed.Add(ctx, 1, attrs)
				continue
			}

			record := domain.NotificationRecord{
				ID:         uuid.New(),
				UserID:     user.ID,
				Kind:       kind,
				ContestKey: key,
				Channel:    strings.Join(confirmed, ","),
				Status:     domain.NotificationSent,
				Timestamp:  now,
			}
			if err := s.users.AppendNotification(ctx, &record); err != nil {
				s.logger.Error("Failed to record sent reminder",
					zap.String("user_id", user.ID.String()),
					zap.String("contest", key),
					zap.String("kind", string(kind)),
					zap.Error(err),
				)
			}
			user.NotificationHistory = append(user.NotificationHistory, record)
			result.Sent++
			s.metrics.RemindersSent.Add(ctx, 1, attrs)
		}
	}
}

// deliver sends over every enabled channel and returns the labels of those
// that confirmed
func (s *Scheduler) deliver(ctx context.Context, user *domain.User, channels []domain.Channel, contest domain.Contest) []string {
	subject, body := reminderMessage(contest)

	var confirmed []string
	for _, ch := range channels {
		transport, ok := s.channels.Get(ch)
		if !ok {
			s.logger.Debug("Channel not configured",
				zap.String("channel", string(ch)),
				zap.String("user_id", user.ID.String()),
			)
			continue
		}
		dest := user.Destination(ch)
		if dest == "" {
			continue
		}
		if transport.Send(ctx, dest, subject, body) {
			confirmed = append(confirmed, ch.Label())
		}
	}
	return confirmed
}

func reminderMessage(c domain.Contest) (subject, body string) {
	subject = "Upcoming Contest: " + c.Title
	body = fmt.Sprintf("Don't forget! %s on %s starts at %s.",
		c.Title, c.Platform, c.StartTime.UTC().Format(time.RFC1123))
	return subject, body
}

// IsSkipped reports whether err means the tick did not run
func IsSkipped(err error) bool {
	return errors.Is(err, domain.ErrTickInProgress)
}
