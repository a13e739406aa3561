package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/contest-radar/backend/internal/domain"
	"github.com/contest-radar/backend/internal/middleware"
	"github.com/contest-radar/backend/internal/service"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// GetCurrentUser returns the currently authenticated user
// GET /api/users/me
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), userID)
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

	c.JSON(http.StatusOK, user.ToResponse())
}

// UpdatePreferences stores reminder channels, kinds, phone and handles
// PUT /api/users/me/preferences
func (h *UserHandler) UpdatePreferences(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	var req domain.PreferencesRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.UpdatePreferences(c.Request.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownChannel),
			errors.Is(err, domain.ErrUnknownReminder),
			errors.Is(err, domain.ErrUnknownPlatform):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid preferences",
				"details": err.Error(),
			})
		case errors.Is(err, domain.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "User not found",
			})
		default:
			internalError(c, err, "Failed to update preferences")
		}
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}

// GetNotifications returns the user's most recent reminder history
// GET /api/users/me/notifications?limit=N
func (h *UserHandler) GetNotifications(c *gin.Context) {
	userID, ok := middleware.RequireUser(c)
	if !ok {
		return
	}

	limit := defaultNotificationLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid limit",
				"details": raw,
			})
			return
		}
		limit = min(n, maxNotificationLimit)
	}

	records, err := h.userService.GetNotifications(c.Request.Context(), userID, limit)
	if err != nil {
		internalError(c, err, "Failed to retrieve notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": records,
		"count":         len(records),
	})
}
