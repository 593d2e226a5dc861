// Package apierr writes governance errors as JSON responses.
package apierr

import (
	"errors"
	"net/http"

	"kyri56xcaesar/marathon-proj/internal/governance"
	"kyri56xcaesar/marathon-proj/internal/logger"

	"github.com/gin-gonic/gin"
)

// Status maps an error to its HTTP status code.
func Status(err error) int {
	switch governance.KindOf(err) {
	case governance.KindNotFound:
		return http.StatusNotFound
	case governance.KindForbidden:
		return http.StatusForbidden
	case governance.KindConflict:
		return http.StatusConflict
	case governance.KindValidation:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Write aborts the request with the error's status. Internal errors are
// logged and hidden from the client.
func Write(c *gin.Context, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		logger.Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal server error"})
		return
	}

	msg := err.Error()
	var gerr *governance.Error
	if errors.As(err, &gerr) {
		msg = gerr.Message
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// BadRequest rejects a body or parameter that could not be bound.
func BadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
