package stats

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"github.com/contest-radar/backend/internal/domain"
)

// DefaultAtCoderBaseURL is the public AtCoder site
const DefaultAtCoderBaseURL = "https://atcoder.jp"

var leadingDigits = regexp.MustCompile(`^(\d+)`)

type atcoderHistoryEntry struct {
	NewRating int    `json:"NewRating"`
	EndTime   string `json:"EndTime"`
}

// AtCoder scrapes the profile page and reads the history JSON
type AtCoder struct {
	baseURL string
	client  *client
	logger  *zap.Logger
}

// NewAtCoder creates the AtCoder stats fetcher
func NewAtCoder(baseURL string, timeout time.Duration, logger *zap.Logger) *AtCoder {
	if baseURL == "" {
		baseURL = DefaultAtCoderBaseURL
	}
	return &AtCoder{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newClient(timeout),
		logger:  logger,
	}
}

func (a *AtCoder) Platform() domain.Platform { return domain.PlatformAtCoder }

// FetchStats loads both documents concurrently. The rating comes from the
// profile table; a profile without one is reported as a failure.
func (a *AtCoder) FetchStats(ctx context.Context, handle string) domain.PlatformStats {
	handle, failed := requireHandle(a.Platform(), handle)
	if failed != nil {
		return *failed
	}
	userURL := a.baseURL + "/users/" + url.PathEscape(handle)

	var (
		profile *html.Node
		entries []atcoderHistoryEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, err := a.client.getHTML(gctx, userURL)
		profile = doc
		return err
	})
	g.Go(func() error {
		return a.client.getJSON(gctx, userURL+"/history/json", &entries)
	})
	if err := g.Wait(); err != nil {
		return failure(a.logger, a.Platform(), handle, err)
	}

	rating, err := atcoderRating(profile)
	if err != nil {
		return failure(a.logger, a.Platform(), handle, err)
	}

	points := make([]datedPoint, 0, len(entries))
	for _, e := range entries {
		at, err := time.Parse(time.RFC3339, e.EndTime)
		if err != nil {
			continue
		}
		points = append(points, datedPoint{at: at, point: domain.RatingPoint{Rating: e.NewRating, Date: dateOf(at)}})
	}

	return domain.PlatformStats{
		Platform: a.Platform(),
		Handle:   handle,
		Success:  true,
		Rating:   intPtr(rating),
		History:  sortedHistory(points),
	}
}

// atcoderRating reads the cell following the "Rating" header
func atcoderRating(doc *html.Node) (int, error) {
	for _, th := range findAll(doc, func(n *html.Node) bool { return isElement(n, atom.Th) }) {
		if textOf(th) != "Rating" {
			continue
		}
		td := nextElement(th)
		if td == nil || !isElement(td, atom.Td) {
			continue
		}
		m := leadingDigits.FindStringSubmatch(textOf(td))
		if m == nil {
			continue
		}
		if v, err := strconv.Atoi(m[1]); err == nil {
			return v, nil
		}
	}
	return 0, domain.ErrRatingNotFound
}
