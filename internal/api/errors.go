package api

import (
	"errors"
	"net/http"

	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const internalErrorMessage = "internal server error"

func statusFor(kind error) int {
	switch {
	case errors.Is(kind, service.ErrValidation), errors.Is(kind, service.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(kind, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(kind, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(kind, service.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps service error kinds onto HTTP statuses. Unclassified
// errors become a generic 500 and their detail stays in the log.
func respondError(c *gin.Context, err error) {
	kind := service.Kind(err)
	status := statusFor(kind)

	if status == http.StatusInternalServerError {
		logInternal(c, err)
		c.AbortWithStatusJSON(status, gin.H{"error": internalErrorMessage})
		return
	}

	body := gin.H{"error": kind.Error()}
	if msg := service.Message(err); msg != "" {
		body["details"] = msg
	}
	c.AbortWithStatusJSON(status, body)
}

// renderError is respondError for HTML pages
func renderError(c *gin.Context, err error) {
	kind := service.Kind(err)
	status := statusFor(kind)

	message := internalErrorMessage
	if status == http.StatusInternalServerError {
		logInternal(c, err)
	} else {
		message = service.Message(err)
	}
	c.HTML(status, "error.html", gin.H{"Status": status, "Message": message})
	c.Abort()
}

func logInternal(c *gin.Context, err error) {
	_ = c.Error(err)
	util.GetLogger().Error("Request failed",
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
}

// badRequest reports an undecodable request as a validation error
func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   service.ErrValidation.Error(),
		"details": err.Error(),
	})
}
