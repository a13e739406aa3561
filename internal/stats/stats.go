// Package stats fetches a single user's rating snapshot from each platform.
// Fetchers never return an error: every failure becomes an unsuccessful
// domain.PlatformStats so callers can render partial results.
package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/contest-radar/backend/internal/domain"
)

// DefaultTimeout bounds a single upstream request
const DefaultTimeout = 10 * time.Second

// browserAgent is sent to the scraped profile pages, which reject bare clients
const browserAgent = "Mozilla/5.0"

// Failure messages reported in PlatformStats.Error
const (
	msgHandleRequired = "Handle is required"
	msgUserNotFound   = "User not found"
	msgRatingNotFound = "Rating not found"
	msgFetchFailed    = "Failed to fetch"
)

// Fetcher reports one user's stats on one platform
type Fetcher interface {
	Platform() domain.Platform
	FetchStats(ctx context.Context, handle string) domain.PlatformStats
}

type client struct {
	httpClient *http.Client
}

func newClient(timeout time.Duration) *client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &client{httpClient: &http.Client{Timeout: timeout}}
}

func (c *client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, domain.ErrHandleNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &statusError{code: resp.StatusCode, body: body}
	}
	return resp, nil
}

// statusError is a non-2xx answer; the start of the body is kept for
// platforms that explain failures in it
type statusError struct {
	code int
	body []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: status=%d", domain.ErrSourceStatus, e.code)
}

func (e *statusError) Unwrap() error {
	return domain.ErrSourceStatus
}

func (c *client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", browserAgent)
	req.Header.Set("Accept", "application/json")
	return c.decode(req, out)
}

func (c *client) postJSON(ctx context.Context, url string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", browserAgent)
	return c.decode(req, out)
}

func (c *client) decode(req *http.Request, out interface{}) error {
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	return nil
}

// getHTML fetches and parses a profile page
func (c *client) getHTML(ctx context.Context, url string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", browserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPayload, err)
	}
	return doc, nil
}

// failure maps an internal error onto the reported stats record
func failure(logger *zap.Logger, platform domain.Platform, handle string, err error) domain.PlatformStats {
	msg := msgFetchFailed
	switch {
	case errors.Is(err, domain.ErrHandleNotFound):
		msg = msgUserNotFound
	case errors.Is(err, domain.ErrRatingNotFound):
		msg = msgRatingNotFound
	}

	logger.Warn("Stats fetch failed",
		zap.String("platform", string(platform)),
		zap.String("handle", handle),
		zap.Error(err),
	)
	return domain.FailedStats(platform, handle, msg)
}

func requireHandle(platform domain.Platform, handle string) (string, *domain.PlatformStats) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		failed := domain.FailedStats(platform, handle, msgHandleRequired)
		return "", &failed
	}
	return handle, nil
}

func dateOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

type datedPoint struct {
	at    time.Time
	point domain.RatingPoint
}

// sortedHistory orders points by their timestamp, oldest first
func sortedHistory(points []datedPoint) []domain.RatingPoint {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].at.Before(points[j].at)
	})
	history := make([]domain.RatingPoint, 0, len(points))
	for _, p := range points {
		history = append(history, p.point)
	}
	return history
}

func intPtr(v int) *int {
	return &v
}
