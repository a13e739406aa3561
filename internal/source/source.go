// Package source holds the upstream contest-listing adapters. Each adapter
// maps one platform's payload onto domain.Contest, skipping bad elements and
// failing as a whole only on transport or top-level payload errors.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/contest-radar/backend/internal/domain"
)

// DefaultTimeout bounds a single upstream request
const DefaultTimeout = 10 * time.Second

const userAgent = "Mozilla/5.0 (compatible; ContestRadar/1.0)"

// Source fetches the contest listing of one platform
type Source interface {
	Platform() domain.Platform
	Fetch(ctx context.Context) ([]domain.Contest, error)
}

// client performs JSON GETs with a fixed timeout
type client struct {
	httpClient *http.Client
}

func newClient(timeout time.Duration) *client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// getJSON fetches url and decodes the body into out
func (c *client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: status=%d", domain.ErrSourceStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	return nil
}

// decodeEach unmarshals every raw element with convert, dropping the ones
// that fail. The number of skipped elements is returned for logging.
func decodeEach[T any](raw []json.RawMessage, convert func(T) (domain.Contest, error)) ([]domain.Contest, int) {
	contests := make([]domain.Contest, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		var item T
		if err := json.Unmarshal(r, &item); err != nil {
			skipped++
			continue
		}
		c, err := convert(item)
		if err != nil {
			skipped++
			continue
		}
		contests = append(contests, c)
	}
	return contests, skipped
}

func logSkipped(logger *zap.Logger, platform domain.Platform, kept, skipped int) {
	if skipped == 0 {
		return
	}
	logger.Debug("Skipped malformed contest entries",
		zap.String("platform", string(platform)),
		zap.Int("kept", kept),
		zap.Int("skipped", skipped),
	)
}

func fromUnix(seconds int64) time.Time {
	return time.Unix(seconds, 0).UTC()
}

// elementError marks a single element as unusable
func elementError(reason string) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedPayload, reason)
}
