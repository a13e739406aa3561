package source

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/contest-radar/backend/internal/domain"
)

// DefaultCodeforcesURL is the public contest.list endpoint
const DefaultCodeforcesURL = "https://codeforces.com/api/contest.list"

var cfDivision = regexp.MustCompile(`(?i)Div\.?\s*([0-9+]+)`)

// Codeforces adapts the Codeforces contest.list API
type Codeforces struct {
	url    string
	client *client
	logger *zap.Logger
}

// NewCodeforces creates a Codeforces source
func NewCodeforces(url string, timeout time.Duration, logger *zap.Logger) *Codeforces {
	if url == "" {
		url = DefaultCodeforcesURL
	}
	return &Codeforces{url: url, client: newClient(timeout), logger: logger}
}

type cfResponse struct {
	Status  string            `json:"status"`
	Comment string            `json:"comment"`
	Result  []json.RawMessage `json:"result"`
}

type cfContest struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	Phase            string `json:"phase"`
	StartTimeSeconds int64  `json:"startTimeSeconds"`
	DurationSeconds  int64  `json:"durationSeconds"`
}

// Platform implements Source
func (s *Codeforces) Platform() domain.Platform {
	return domain.PlatformCodeforces
}

// Fetch implements Source
func (s *Codeforces) Fetch(ctx context.Context) ([]domain.Contest, error) {
	var resp cfResponse
	if err := s.client.getJSON(ctx, s.url, &resp); err != nil {
		return nil, domain.NewFetchError(s.Platform(), err)
	}
	if resp.Status != "OK" {
		return nil, domain.NewFetchError(s.Platform(),
			fmt.Errorf("%w: status %q %s", domain.ErrSourceStatus, resp.Status, resp.Comment))
	}

	contests, skipped := decodeEach(resp.Result, convertCodeforces)
	logSkipped(s.logger, s.Platform(), len(contests), skipped)
	return contests, nil
}

func convertCodeforces(c cfContest) (domain.Contest, error) {
	if c.Name == "" || c.StartTimeSeconds <= 0 {
		return domain.Contest{}, elementError("missing name or start")
	}
	start := fromUnix(c.StartTimeSeconds)
	var end time.Time
	if c.DurationSeconds > 0 {
		end = fromUnix(c.StartTimeSeconds + c.DurationSeconds)
	}
	return domain.NewContest(
		domain.PlatformCodeforces,
		c.Name,
		start,
		end,
		codeforcesCategory(c.Name, c.Type),
		fmt.Sprintf("https://codeforces.com/contest/%d", c.ID),
	), nil
}

// codeforcesCategory classifies by the Educational marker and division number
func codeforcesCategory(name, contestType string) string {
	educational := strings.Contains(name, "Educational")
	div := cfDivision.FindStringSubmatch(name)

	switch {
	case educational && div != nil:
		return "Edu Div " + div[1]
	case educational:
		return "Educational"
	case div != nil:
		return "Div " + div[1]
	case contestType == "CF":
		return "Division"
	default:
		return "Other"
	}
}
