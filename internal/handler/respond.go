package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// bindJSON decodes the request body into v, answering 400 on failure
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

// internalError attaches err for the request log and answers 500 with msg
func internalError(c *gin.Context, err error, msg string) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": msg,
	})
}
