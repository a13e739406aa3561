package source

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/contest-radar/backend/internal/domain"
)

// DefaultCodeChefURL lists present and future CodeChef contests
const DefaultCodeChefURL = "https://www.codechef.com/api/list/contests/all?sort_by=START&sorting_order=asc&offset=0&mode=all"

// CodeChef adapts the CodeChef contest listing
type CodeChef struct {
	url    string
	client *client
	logger *zap.Logger
}

// NewCodeChef creates a CodeChef source
func NewCodeChef(url string, timeout time.Duration, logger *zap.Logger) *CodeChef {
	if url == "" {
		url = DefaultCodeChefURL
	}
	return &CodeChef{url: url, client: newClient(timeout), logger: logger}
}

type ccResponse struct {
	PresentContests []json.RawMessage `json:"present_contests"`
	FutureContests  []json.RawMessage `json:"future_contests"`
}

type ccContest struct {
	Code     string `json:"contest_code"`
	Name     string `json:"contest_name"`
	StartISO string `json:"contest_start_date_iso"`
	EndISO   string `json:"contest_end_date_iso"`
}

// Platform implements Source
func (s *CodeChef) Platform() domain.Platform {
	return domain.PlatformCodeChef
}

// Fetch implements Source
func (s *CodeChef) Fetch(ctx context.Context) ([]domain.Contest, error) {
	var resp ccResponse
	if err := s.client.getJSON(ctx, s.url, &resp); err != nil {
		return nil, domain.NewFetchError(s.Platform(), err)
	}

	raw := make([]json.RawMessage, 0, len(resp.PresentContests)+len(resp.FutureContests))
	raw = append(raw, resp.PresentContests...)
	raw = append(raw, resp.FutureContests...)

	contests, skipped := decodeEach(raw, convertCodeChef)
	logSkipped(s.logger, s.Platform(), len(contests), skipped)
	return contests, nil
}

func convertCodeChef(c ccContest) (domain.Contest, error) {
	if c.Code == "" || c.Name == "" {
		return domain.Contest{}, elementError("missing code or name")
	}
	start, err := time.Parse(time.RFC3339, c.StartISO)
	if err != nil {
		return domain.Contest{}, elementError("bad start date")
	}
	var end time.Time
	if c.EndISO != "" {
		if end, err = time.Parse(time.RFC3339, c.EndISO); err != nil {
			end = time.Time{}
		}
	}
	return domain.NewContest(
		domain.PlatformCodeChef,
		c.Name,
		start,
		end,
		codechefCategory(c.Code),
		"https://www.codechef.com/"+c.Code,
	), nil
}

func codechefCategory(code string) string {
	if strings.Contains(code, "START") {
		return "starters"
	}
	return "long"
}
