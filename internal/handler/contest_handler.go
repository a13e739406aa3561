package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/contest-radar/backend/internal/domain"
)

// ContestLister serves the aggregated contest list
type ContestLister interface {
	GetContests(ctx context.Context) []domain.Contest
	FetchedAt() time.Time
}

// ContestHandler handles contest listing requests
type ContestHandler struct {
	contests ContestLister
}

// NewContestHandler creates a new contest handler
func NewContestHandler(contests ContestLister) *ContestHandler {
	return &ContestHandler{
		contests: contests,
	}
}

// ContestListResponse is the body of GET /api/contests
type ContestListResponse struct {
	Contests  []domain.Contest `json:"contests"`
	Count     int              `json:"count"`
	FetchedAt *time.Time       `json:"fetched_at,omitempty"`
}

// GetContests returns the merged contest list, optionally narrowed to the
// platforms given by repeated ?platform= parameters. Unknown platform names
// match nothing.
// GET /api/contests
func (h *ContestHandler) GetContests(c *gin.Context) {
	names := c.QueryArray("platform")
	filter := make(map[domain.Platform]bool, len(names))
	for _, name := range names {
		if platform, err := domain.ParsePlatform(name); err == nil {
			filter[platform] = true
		}
	}

	all := h.contests.GetContests(c.Request.Context())
	contests := make([]domain.Contest, 0, len(all))
	for _, contest := range all {
		if len(names) > 0 && !filter[contest.Platform] {
			continue
		}
		contests = append(contests, contest)
	}

	resp := ContestListResponse{
		Contests: contests,
		Count:    len(contests),
	}
	if fetchedAt := h.contests.FetchedAt(); !fetchedAt.IsZero() {
		resp.FetchedAt = &fetchedAt
	}

	c.JSON(http.StatusOK, resp)
}
