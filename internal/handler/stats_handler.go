package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/contest-radar/backend/internal/domain"
	"github.com/contest-radar/backend/internal/middleware"
)

// StatsFetcher resolves per-platform stats for a set of handles
type StatsFetcher interface {
	FetchAll(ctx context.Context, handles map[domain.Platform]string) map[string]domain.PlatformStats
	FetchForUser(ctx context.Context, user *domain.User) map[string]domain.PlatformStats
}

// UserLookup loads the stored profile of the authenticated user
type UserLookup interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// StatsHandler handles platform stats requests
type StatsHandler struct {
	stats StatsFetcher
	users UserLookup
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(stats StatsFetcher, users UserLookup) *StatsHandler {
	return &StatsHandler{
		stats: stats,
		users: users,
	}
}

// GetStats fetches stats for the handles given as query parameters keyed by
// platform name, e.g. ?codeforces=tourist&leetcode=lee215. Unknown keys are
// ignored.
// GET /api/stats
func (h *StatsHandler) GetStats(c *gin.Context) {
	handles := make(map[domain.Platform]string)
	for key, values := range c.Request.URL.Query() {
		platform, err := domain.ParsePlatform(key)
		if err != nil || len(values) == 0 {
			continue
		}
		handles[platform] = values[0]
	}

	c.JSON(http.StatusOK, gin.H{
		"stats": h.stats.FetchAll(c.Request.Context(), handles),
	})
}

// GetMyStats fetches stats for the handles stored on the user's profile
// GET /api/users/me/stats
func (h *StatsHandler) GetMyStats(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	user, err := h.users.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "User not found",
			})
			return
		}
		internalError(c, err, "Failed to retrieve user")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats": h.stats.FetchForUser(c.Request.Context(), user),
	})
}
