package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/contest-radar/backend/internal/domain"
)

// DefaultNotificationLimit caps history listings when no limit is given
const DefaultNotificationLimit = 50

// userRepository implements domain.UserRepository using GORM
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) domain.UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(user *domain.User) error {
	result := r.db.Create(user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return domain.ErrUserAlreadyExists
		}
		return result.Error
	}
	return nil
}

// FindByID finds a user by their ID
func (r *userRepository) FindByID(id uuid.UUID) (*domain.User, error) {
	var user domain.User
	result := r.db.Where("id = ?", id).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// FindByEmail finds a user by their email address
func (r *userRepository) FindByEmail(email string) (*domain.User, error) {
	var user domain.User
	result := r.db.Where("email = ?", email).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// Update saves the user's own columns. History rows are written separately.
func (r *userRepository) Update(user *domain.User) error {
	result := r.db.Omit("NotificationHistory").Save(user)
	return result.Error
}

// ListForReminders loads users that enabled at least one channel and one
// reminder kind, together with their SENT history.
func (r *userRepository) ListForReminders(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	result := r.db.WithContext(ctx).
		Where("cardinality(channels) > 0 AND cardinality(reminders) > 0").
		Preload("NotificationHistory", "status = ?", domain.NotificationSent).
		Find(&users)
	if result.Error != nil {
		return nil, result.Error
	}
	return users, nil
}

// AppendNotification inserts one history record. A second SENT record for
// the same user, contest key and kind is rejected by the partial unique index.
func (r *userRepository) AppendNotification(ctx context.Context, record *domain.NotificationRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// FindNotifications returns the user's most recent history records
func (r *userRepository) FindNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]domain.NotificationRecord, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}

	var records []domain.NotificationRecord
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}
