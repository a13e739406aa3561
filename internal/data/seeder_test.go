package data

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/contest-radar/backend/internal/domain"
)

type recordingRepo struct {
	byEmail map[string]domain.User
}

func (r *recordingRepo) Create(user *domain.User) error {
	if _, ok := r.byEmail[user.Email]; ok {
		return domain.ErrUserAlreadyExists
	}
	user.ID = uuid.New()
	r.byEmail[user.Email] = *user
	return nil
}

func (r *recordingRepo) FindByID(id uuid.UUID) (*domain.User, error) { return nil, domain.ErrUserNotFound }

func (r *recordingRepo) FindByEmail(email string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

func (r *recordingRepo) Update(user *domain.User) error { return nil }

func (r *recordingRepo) ListForReminders(ctx context.Context) ([]domain.User, error) {
	return nil, nil
}

func (r *recordingRepo) AppendNotification(ctx context.Context, record *domain.NotificationRecord) error {
	return nil
}

func (r *recordingRepo) FindNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]domain.NotificationRecord, error) {
	return nil, nil
}

func TestSeedDevUsers(t *testing.T) {
	repo := &recordingRepo{byEmail: map[string]domain.User{}}
	seeder := NewSeeder(repo, zap.NewNop())
	seeder.hashCost = bcrypt.MinCost

	if err := seeder.SeedDevUsers(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(repo.byEmail) != 2 {
		t.Fatalf("want 2 users, got %d", len(repo.byEmail))
	}

	demo := repo.byEmail["demo@contest-radar.dev"]
	if demo.CodeforcesHandle != "tourist" || demo.LeetCodeHandle != "lee215" {
		t.Fatalf("handles not applied: %+v", demo)
	}
	if len(demo.Reminders) != 2 || demo.Reminders[1] != string(domain.ReminderTwoDays) {
		t.Fatalf("unexpected reminders %v", demo.Reminders)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(demo.PasswordHash), []byte("demo-password")); err != nil {
		t.Fatalf("password not hashed correctly: %v", err)
	}

	sms := repo.byEmail["sms@contest-radar.dev"]
	if sms.Destination(domain.ChannelSMS) != "+15555550100" {
		t.Fatalf("unexpected sms destination %q", sms.Destination(domain.ChannelSMS))
	}

	if err := seeder.SeedDevUsers(); err != nil {
		t.Fatalf("second run must be a no-op, got %v", err)
	}
	if len(repo.byEmail) != 2 {
		t.Fatalf("duplicates created: %d", len(repo.byEmail))
	}
}
