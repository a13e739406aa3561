package source

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/contest-radar/backend/internal/domain"
)

// DefaultAtCoderURL is the community-maintained AtCoder contest index
const DefaultAtCoderURL = "https://kenkoooo.com/atcoder/resources/contests.json"

// AtCoder adapts the AtCoder contest index
type AtCoder struct {
	url    string
	client *client
	logger *zap.Logger
}

// NewAtCoder creates an AtCoder source
func NewAtCoder(url string, timeout time.Duration, logger *zap.Logger) *AtCoder {
	if url == "" {
		url = DefaultAtCoderURL
	}
	return &AtCoder{url: url, client: newClient(timeout), logger: logger}
}

type atContest struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	StartEpochSecond int64  `json:"start_epoch_second"`
	DurationSecond   int64  `json:"duration_second"`
}

// Platform implements Source
func (s *AtCoder) Platform() domain.Platform {
	return domain.PlatformAtCoder
}

// Fetch implements Source
func (s *AtCoder) Fetch(ctx context.Context) ([]domain.Contest, error) {
	var raw []json.RawMessage
	if err := s.client.getJSON(ctx, s.url, &raw); err != nil {
		return nil, domain.NewFetchError(s.Platform(), err)
	}

	contests, skipped := decodeEach(raw, convertAtCoder)
	logSkipped(s.logger, s.Platform(), len(contests), skipped)
	return contests, nil
}

func convertAtCoder(c atContest) (domain.Contest, error) {
	if c.ID == "" || c.Title == "" || c.StartEpochSecond <= 0 {
		return domain.Contest{}, elementError("missing id, title or start")
	}
	var end time.Time
	if c.DurationSecond > 0 {
		end = fromUnix(c.StartEpochSecond + c.DurationSecond)
	}
	return domain.NewContest(
		domain.PlatformAtCoder,
		c.Title,
		fromUnix(c.StartEpochSecond),
		end,
		atcoderCategory(c.ID),
		"https://atcoder.jp/contests/"+c.ID,
	), nil
}

func atcoderCategory(id string) string {
	switch {
	case strings.HasPrefix(id, "abc"):
		return "beginner"
	case strings.HasPrefix(id, "arc"):
		return "regular"
	case strings.HasPrefix(id, "agc"):
		return "grand"
	default:
		return "other"
	}
}
