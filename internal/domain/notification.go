package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReminderKind is a lead-time category a user can subscribe to
type ReminderKind string

const (
	ReminderOneDay  ReminderKind = "oneDay"
	ReminderTwoDays ReminderKind = "twoDays"
)

// ReminderWindow is the inclusive range of hours-until-start in which a kind fires
type ReminderWindow struct {
	MinHours float64
	MaxHours float64
}

// Contains reports whether hoursUntilStart falls in the window
func (w ReminderWindow) Contains(hoursUntilStart float64) bool {
	return hoursUntilStart >= w.MinHours && hoursUntilStart <= w.MaxHours
}

var reminderWindows = map[ReminderKind]ReminderWindow{
	ReminderOneDay:  {MinHours: 23.5, MaxHours: 24.5},
	ReminderTwoDays: {MinHours: 47.5, MaxHours: 48.5},
}

// Window returns the firing window for the kind
func (k ReminderKind) Window() (ReminderWindow, bool) {
	w, ok := reminderWindows[k]
	return w, ok
}

// ParseReminderKind resolves a case-insensitive reminder kind
func ParseReminderKind(name string) (ReminderKind, error) {
	for kind := range reminderWindows {
		if strings.EqualFold(string(kind), strings.TrimSpace(name)) {
			return kind, nil
		}
	}
	return "", ErrUnknownReminder
}

// NotificationStatus is the outcome stored in a history record
type NotificationStatus string

const (
	NotificationSent   NotificationStatus = "SENT"
	NotificationFailed NotificationStatus = "FAILED"
)

// NotificationRecord is one entry of a user's notification history.
// At most one SENT record may exist per (user, contest key, kind).
type NotificationRecord struct {
	ID         uuid.UUID          `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID     uuid.UUID          `json:"-" gorm:"type:uuid;not null;index;uniqueIndex:idx_sent_reminder,where:status = 'SENT'"`
	Kind       ReminderKind       `json:"type" gorm:"type:varchar(20);not null;uniqueIndex:idx_sent_reminder,where:status = 'SENT'"`
	ContestKey string             `json:"contest_id" gorm:"not null;uniqueIndex:idx_sent_reminder,where:status = 'SENT'"`
	Channel    string             `json:"channel" gorm:"type:varchar(40);not null"`
	Status     NotificationStatus `json:"status" gorm:"type:varchar(10);not null"`
	Timestamp  time.Time          `json:"timestamp" gorm:"not null"`
}

// TableName specifies the table name for GORM
func (NotificationRecord) TableName() string {
	return "notification_history"
}
