package domain

import (
	"context"
	"strings"
	"time"
)

// Platform identifies an upstream contest host
type Platform string

const (
	PlatformCodeforces Platform = "Codeforces"
	PlatformAtCoder    Platform = "AtCoder"
	PlatformLeetCode   Platform = "LeetCode"
	PlatformCodeChef   Platform = "CodeChef"
)

// Platforms lists every supported platform in aggregation order
var Platforms = []Platform{
	PlatformCodeforces,
	PlatformAtCoder,
	PlatformLeetCode,
	PlatformCodeChef,
}

// DefaultColor is used for platforms without an assigned color
const DefaultColor = "#8b5cf6"

var platformColors = map[Platform]string{
	PlatformLeetCode:   "#dc2626",
	PlatformCodeforces: "#3b82f6",
	PlatformCodeChef:   "#10b981",
	PlatformAtCoder:    "#6b7280",
}

// Color returns the display color for the platform
func (p Platform) Color() string {
	if c, ok := platformColors[p]; ok {
		return c
	}
	return DefaultColor
}

// Key returns the lowercase name used as a map key in API responses
func (p Platform) Key() string {
	return strings.ToLower(string(p))
}

// ParsePlatform resolves a case-insensitive platform name
func ParsePlatform(name string) (Platform, error) {
	for _, p := range Platforms {
		if strings.EqualFold(string(p), name) {
			return p, nil
		}
	}
	return "", ErrUnknownPlatform
}

// AssumedDuration is used for display math when a contest has no known end
const AssumedDuration = 2 * time.Hour

// Contest is the canonical contest shape produced by every source adapter.
// Values are treated as immutable once built.
type Contest struct {
	Title     string    `json:"title"`
	StartTime time.Time `json:"start"`
	EndTime   time.Time `json:"end,omitzero"`
	Platform  Platform  `json:"platform"`
	Category  string    `json:"type"`
	URL       string    `json:"url"`
	Color     string    `json:"color"`
}

// NewContest builds a contest in UTC. An end before the start is treated as unknown.
func NewContest(platform Platform, title string, start, end time.Time, category, url string) Contest {
	start = start.UTC()
	if !end.IsZero() {
		end = end.UTC()
		if end.Before(start) {
			end = time.Time{}
		}
	}
	return Contest{
		Title:     title,
		StartTime: start,
		EndTime:   end,
		Platform:  platform,
		Category:  category,
		URL:       url,
		Color:     platform.Color(),
	}
}

// HasEnd reports whether the upstream supplied an end time
func (c Contest) HasEnd() bool {
	return !c.EndTime.IsZero()
}

// DisplayEnd returns the end time, assuming AssumedDuration when unknown
func (c Contest) DisplayEnd() time.Time {
	if c.HasEnd() {
		return c.EndTime
	}
	return c.StartTime.Add(AssumedDuration)
}

// Key identifies the contest for reminder de-duplication.
// Only the title is stable across sources today, so two unrelated contests
// sharing a title collide here.
func (c Contest) Key() string {
	return c.Title
}

// ContestWindow returns the aggregation range for the given instant: from the
// first day of the previous calendar month through the last moment of the
// month after next, in UTC.
func ContestWindow(now time.Time) (start, end time.Time) {
	now = now.UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	start = monthStart.AddDate(0, -1, 0)
	end = monthStart.AddDate(0, 3, 0).Add(-time.Nanosecond)
	return start, end
}

// InWindow reports whether t falls inside the inclusive window
func InWindow(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// ContestProvider is anything that can hand out the current contest list
type ContestProvider interface {
	GetContests(ctx context.Context) []Contest
}
