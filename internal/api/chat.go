package api

import (
	"net/http"

	"storefront/internal/realtime"

	"github.com/gin-gonic/gin"
)

// listMessages handles GET /api/messages
func (h *Handler) listMessages(c *gin.Context) {
	messages, err := h.chat.History(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// serveWS handles GET /ws
func (h *Handler) serveWS(c *gin.Context) {
	if h.hub == nil {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	realtime.ServeWS(h.hub, h.chat, c.Writer, c.Request)
}
