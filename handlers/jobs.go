package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DispatchWelcomeEmails sends one batch of pending welcome emails and returns
// the per-row report.
func (h *Handler) DispatchWelcomeEmails(c *gin.Context) {
	if h.welcome == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Welcome dispatcher not configured"})
		return
	}

	report, err := h.welcome.Run(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("welcome dispatch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
