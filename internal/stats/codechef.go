package stats

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/contest-radar/backend/internal/domain"
)

// DefaultCodeChefBaseURL is the public CodeChef site
const DefaultCodeChefBaseURL = "https://www.codechef.com"

// CodeChef scrapes the profile page. It has no history source.
type CodeChef struct {
	baseURL string
	client  *client
	logger  *zap.Logger
}

// NewCodeChef creates the CodeChef stats fetcher
func NewCodeChef(baseURL string, timeout time.Duration, logger *zap.Logger) *CodeChef {
	if baseURL == "" {
		baseURL = DefaultCodeChefBaseURL
	}
	return &CodeChef{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newClient(timeout),
		logger:  logger,
	}
}

func (c *CodeChef) Platform() domain.Platform { return domain.PlatformCodeChef }

func (c *CodeChef) FetchStats(ctx context.Context, handle string) domain.PlatformStats {
	handle, failed := requireHandle(c.Platform(), handle)
	if failed != nil {
		return *failed
	}

	doc, err := c.client.getHTML(ctx, c.baseURL+"/users/"+url.PathEscape(handle))
	if err != nil {
		return failure(c.logger, c.Platform(), handle, err)
	}

	ratingNode := findFirst(doc, byClass("rating-number"))
	if ratingNode == nil {
		return failure(c.logger, c.Platform(), handle, domain.ErrRatingNotFound)
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, textOf(ratingNode))
	rating, err := strconv.Atoi(digits)
	if err != nil {
		return failure(c.logger, c.Platform(), handle, domain.ErrRatingNotFound)
	}

	var stars string
	if n := findFirst(doc, byClass("rating-star")); n != nil {
		stars = textOf(n)
	}

	return domain.PlatformStats{
		Platform: c.Platform(),
		Handle:   handle,
		Success:  true,
		Rating:   intPtr(rating),
		Stars:    stars,
		History:  []domain.RatingPoint{},
	}
}
