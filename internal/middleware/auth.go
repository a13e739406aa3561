package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// AuthorizationHeader is the header key for the JWT token
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for the JWT token
	BearerPrefix = "Bearer "
	// UserIDKey is the context key for the user ID
	UserIDKey = "userID"
)

// TokenValidator resolves an access token to the user it was issued for
type TokenValidator interface {
	ValidateAccessToken(token string) (uuid.UUID, error)
}

// AuthMiddleware rejects requests without a valid bearer access token
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, msg := bearerToken(c.GetHeader(AuthorizationHeader))
		if msg != "" {
			abortUnauthorized(c, msg)
			return
		}

		userID, err := validator.ValidateAccessToken(token)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// bearerToken extracts the token, or a client-facing reason it is missing
func bearerToken(header string) (string, string) {
	if header == "" {
		return "", "Authorization header is required"
	}
	if len(header) < len(BearerPrefix) || !strings.EqualFold(header[:len(BearerPrefix)], BearerPrefix) {
		return "", "Invalid authorization header format"
	}
	token := strings.TrimSpace(header[len(BearerPrefix):])
	if token == "" {
		return "", "Token is required"
	}
	return token, ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}

// GetUserID extracts the user ID from the gin context
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := userID.(uuid.UUID)
	return id, ok
}

// RequireUser returns the authenticated user's ID or aborts with 401
func RequireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := GetUserID(c)
	if !ok {
		abortUnauthorized(c, "Authentication required")
		return uuid.Nil, false
	}
	return userID, true
}
