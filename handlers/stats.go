package handlers

import (
	"net/http"
	"strings"

	"kaizen/analytics"

	"github.com/gin-gonic/gin"
)

const maxEventNameLength = 64

type trackEventRequest struct {
	Name string                 `json:"name" binding:"required"`
	Data map[string]interface{} `json:"data"`
}

// TrackEvent records a client-side analytics event. Recording happens in the
// background, so the response is always 202 once the request is valid.
func (h *Handler) TrackEvent(c *gin.Context) {
	var req trackEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxEventNameLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Event name is required and must be under 64 chars"})
		return
	}

	if h.events != nil {
		h.events.TrackEvent(name, req.Data, analytics.UserAgent(c.Request.Context()))
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true})
}
