package source

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/contest-radar/backend/internal/domain"
)

// DefaultLeetCodeURL queries the public GraphQL endpoint for all contests
const DefaultLeetCodeURL = "https://leetcode.com/graphql?query=%7BallContests%7Btitle%20titleSlug%20startTime%20duration%7D%7D"

// LeetCode adapts the LeetCode contest listing
type LeetCode struct {
	url    string
	client *client
	logger *zap.Logger
}

// NewLeetCode creates a LeetCode source
func NewLeetCode(url string, timeout time.Duration, logger *zap.Logger) *LeetCode {
	if url == "" {
		url = DefaultLeetCodeURL
	}
	return &LeetCode{url: url, client: newClient(timeout), logger: logger}
}

// lcResponse accepts both a bare listing and a GraphQL envelope
type lcResponse struct {
	AllContests []json.RawMessage `json:"allContests"`
	Data        *struct {
		AllContests []json.RawMessage `json:"allContests"`
	} `json:"data"`
}

type lcContest struct {
	Title     string `json:"title"`
	TitleSlug string `json:"titleSlug"`
	StartTime int64  `json:"startTime"`
	Duration  int64  `json:"duration"`
}

// Platform implements Source
func (s *LeetCode) Platform() domain.Platform {
	return domain.PlatformLeetCode
}

// Fetch implements Source
func (s *LeetCode) Fetch(ctx context.Context) ([]domain.Contest, error) {
	var resp lcResponse
	if err := s.client.getJSON(ctx, s.url, &resp); err != nil {
		return nil, domain.NewFetchError(s.Platform(), err)
	}

	raw := resp.AllContests
	if raw == nil && resp.Data != nil {
		raw = resp.Data.AllContests
	}
	if raw == nil {
		return nil, domain.NewFetchError(s.Platform(), elementError("allContests missing"))
	}

	contests, skipped := decodeEach(raw, convertLeetCode)
	logSkipped(s.logger, s.Platform(), len(contests), skipped)
	return contests, nil
}

func convertLeetCode(c lcContest) (domain.Contest, error) {
	if c.Title == "" || c.TitleSlug == "" || c.StartTime <= 0 {
		return domain.Contest{}, elementError("missing title, slug or start")
	}
	var end time.Time
	if c.Duration > 0 {
		end = fromUnix(c.StartTime + c.Duration)
	}
	return domain.NewContest(
		domain.PlatformLeetCode,
		c.Title,
		fromUnix(c.StartTime),
		end,
		leetcodeCategory(c.Title),
		"https://leetcode.com/contest/"+c.TitleSlug,
	), nil
}

func leetcodeCategory(title string) string {
	if strings.Contains(strings.ToLower(title), "biweekly") {
		return "biweekly"
	}
	return "weekly"
}
