package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Channel is a delivery channel a user can enable
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Label is the uppercase form written to notification history
func (c Channel) Label() string {
	return strings.ToUpper(string(c))
}

// ParseChannel resolves a case-insensitive channel name
func ParseChannel(name string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(name))) {
	case ChannelEmail:
		return ChannelEmail, nil
	case ChannelSMS:
		return ChannelSMS, nil
	}
	return "", ErrUnknownChannel
}

// User represents a registered user with reminder preferences
type User struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Email        string         `json:"email" gorm:"uniqueIndex;not null"`
	Name         string         `json:"name" gorm:"not null;default:''"`
	PasswordHash string         `json:"-" gorm:"not null"`
	Phone        string         `json:"phone"`
	Channels     pq.StringArray `json:"channels" gorm:"type:text[]"`
	Reminders    pq.StringArray `json:"reminders" gorm:"type:text[]"`

	CodeforcesHandle string `json:"codeforces_handle"`
	AtCoderHandle    string `json:"atcoder_handle"`
	LeetCodeHandle   string `json:"leetcode_handle"`
	CodeChefHandle   string `json:"codechef_handle"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	NotificationHistory []NotificationRecord `json:"-" gorm:"foreignKey:UserID"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// EnabledChannels returns the recognised channels the user turned on
func (u *User) EnabledChannels() []Channel {
	var channels []Channel
	seen := make(map[Channel]bool)
	for _, name := range u.Channels {
		ch, err := ParseChannel(name)
		if err != nil || seen[ch] {
			continue
		}
		seen[ch] = true
		channels = append(channels, ch)
	}
	return channels
}

// EnabledReminders returns the recognised reminder kinds the user turned on
func (u *User) EnabledReminders() []ReminderKind {
	var kinds []ReminderKind
	seen := make(map[ReminderKind]bool)
	for _, name := range u.Reminders {
		kind, err := ParseReminderKind(name)
		if err != nil || seen[kind] {
			continue
		}
		seen[kind] = true
		kinds = append(kinds, kind)
	}
	return kinds
}

// Destination returns the address a channel delivers to, empty when unset
func (u *User) Destination(ch Channel) string {
	switch ch {
	case ChannelEmail:
		return u.Email
	case ChannelSMS:
		return u.Phone
	}
	return ""
}

// Handles returns the configured platform handles, omitting blanks
func (u *User) Handles() map[Platform]string {
	handles := make(map[Platform]string)
	for p, h := range map[Platform]string{
		PlatformCodeforces: u.CodeforcesHandle,
		PlatformAtCoder:    u.AtCoderHandle,
		PlatformLeetCode:   u.LeetCodeHandle,
		PlatformCodeChef:   u.CodeChefHandle,
	} {
		if h = strings.TrimSpace(h); h != "" {
			handles[p] = h
		}
	}
	return handles
}

// HasSent reports whether a SENT record already exists for the contest and kind
func (u *User) HasSent(contestKey string, kind ReminderKind) bool {
	for _, n := range u.NotificationHistory {
		if n.Status == NotificationSent && n.ContestKey == contestKey && n.Kind == kind {
			return true
		}
	}
	return false
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(user *User) error
	FindByID(id uuid.UUID) (*User, error)
	FindByEmail(email string) (*User, error)
	Update(user *User) error
	ListForReminders(ctx context.Context) ([]User, error)
	AppendNotification(ctx context.Context, record *NotificationRecord) error
	FindNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]NotificationRecord, error)
}

// UserCreateRequest represents the data needed to create a new user
type UserCreateRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"max=100"`
	Password string `json:"password" binding:"required,min=8"`
}

// PreferencesRequest replaces a user's reminder preferences and handles.
// Nil fields are left unchanged.
type PreferencesRequest struct {
	Channels  []string          `json:"channels"`
	Reminders []string          `json:"reminders"`
	Phone     *string           `json:"phone"`
	Handles   map[string]string `json:"handles"`
}

// UserResponse represents the public user data returned by the API
type UserResponse struct {
	ID        uuid.UUID         `json:"id"`
	Email     string            `json:"email"`
	Name      string            `json:"name"`
	Phone     string            `json:"phone,omitempty"`
	Channels  []string          `json:"channels"`
	Reminders []string          `json:"reminders"`
	Handles   map[string]string `json:"handles"`
	CreatedAt time.Time         `json:"created_at"`
}

// ToResponse converts a User to a UserResponse (hides sensitive data)
func (u *User) ToResponse() UserResponse {
	handles := make(map[string]string)
	for p, h := range u.Handles() {
		handles[p.Key()] = h
	}
	channels := []string(u.Channels)
	if channels == nil {
		channels = []string{}
	}
	reminders := []string(u.Reminders)
	if reminders == nil {
		reminders = []string{}
	}
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Phone:     u.Phone,
		Channels:  channels,
		Reminders: reminders,
		Handles:   handles,
		CreatedAt: u.CreatedAt,
	}
}
