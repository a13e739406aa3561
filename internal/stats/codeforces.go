package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/contest-radar/backend/internal/domain"
)

// DefaultCodeforcesBaseURL is the public Codeforces site
const DefaultCodeforcesBaseURL = "https://codeforces.com"

type cfUserInfoResponse struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
	Result  []struct {
		Handle    string `json:"handle"`
		Rating    *int   `json:"rating"`
		MaxRating *int   `json:"maxRating"`
		Rank      string `json:"rank"`
	} `json:"result"`
}

type cfRatingResponse struct {
	Status string `json:"status"`
	Result []struct {
		NewRating               int   `json:"newRating"`
		RatingUpdateTimeSeconds int64 `json:"ratingUpdateTimeSeconds"`
	} `json:"result"`
}

// Codeforces reads user.info and user.rating
type Codeforces struct {
	baseURL string
	client  *client
	logger  *zap.Logger
}

// NewCodeforces creates the Codeforces stats fetcher
func NewCodeforces(baseURL string, timeout time.Duration, logger *zap.Logger) *Codeforces {
	if baseURL == "" {
		baseURL = DefaultCodeforcesBaseURL
	}
	return &Codeforces{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newClient(timeout),
		logger:  logger,
	}
}

func (c *Codeforces) Platform() domain.Platform { return domain.PlatformCodeforces }

// FetchStats loads the profile and the rating history concurrently. A failed
// history call leaves the history empty; a failed profile call fails the record.
func (c *Codeforces) FetchStats(ctx context.Context, handle string) domain.PlatformStats {
	handle, failed := requireHandle(c.Platform(), handle)
	if failed != nil {
		return *failed
	}

	var (
		info   cfUserInfoResponse
		rating cfRatingResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := c.client.getJSON(gctx, c.baseURL+"/api/user.info?handles="+url.QueryEscape(handle), &info)
		return cfUnknownHandle(err)
	})
	g.Go(func() error {
		if err := c.client.getJSON(gctx, c.baseURL+"/api/user.rating?handle="+url.QueryEscape(handle), &rating); err != nil {
			c.logger.Debug("Codeforces rating history unavailable",
				zap.String("handle", handle),
				zap.Error(err),
			)
			rating = cfRatingResponse{}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return failure(c.logger, c.Platform(), handle, err)
	}

	if info.Status != "OK" || len(info.Result) == 0 {
		return failure(c.logger, c.Platform(), handle, domain.ErrHandleNotFound)
	}
	user := info.Result[0]

	var points []datedPoint
	if rating.Status == "OK" {
		for _, r := range rating.Result {
			at := time.Unix(r.RatingUpdateTimeSeconds, 0)
			points = append(points, datedPoint{at: at, point: domain.RatingPoint{Rating: r.NewRating, Date: dateOf(at)}})
		}
	}

	return domain.PlatformStats{
		Platform:  c.Platform(),
		Handle:    handle,
		Success:   true,
		Rating:    user.Rating,
		MaxRating: user.MaxRating,
		Rank:      user.Rank,
		History:   sortedHistory(points),
	}
}

// cfUnknownHandle turns the API's 400 "handles: User with handle X not found"
// answer into ErrHandleNotFound
func cfUnknownHandle(err error) error {
	var se *statusError
	if !errors.As(err, &se) || se.code != http.StatusBadRequest {
		return err
	}
	var body cfUserInfoResponse
	if json.Unmarshal(se.body, &body) == nil && body.Status == "FAILED" &&
		strings.Contains(strings.ToLower(body.Comment), "not found") {
		return domain.ErrHandleNotFound
	}
	return err
}
