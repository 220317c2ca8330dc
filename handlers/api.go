package handlers

import (
	"net/http"
	"strconv"

	"kaizen/models"
	"kaizen/services"
	"kaizen/store"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListNewsletterIssues(c *gin.Context) {
	if h.unavailableContent() {
		c.JSON(http.StatusServiceUnavailable, services.IssueList{Data: []models.NewsletterIssue{}, Error: services.MsgUnavailable})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"data": nil, "error": "Invalid limit"})
			return
		}
		limit = n
	}

	res := h.content.GetNewsletterIssues(c.Request.Context(), limit, viewerTier(c))
	c.JSON(resultStatus(res.Error, false), res)
}

func (h *Handler) GetNewsletterIssue(c *gin.Context) {
	if h.unavailableContent() {
		c.JSON(http.StatusServiceUnavailable, services.IssueResult{Error: services.MsgUnavailable})
		return
	}

	res := h.content.GetNewsletterIssue(c.Request.Context(), c.Param("id"), viewerTier(c))
	c.JSON(resultStatus(res.Error, res.NotFound), res)
}

func (h *Handler) ListTechniques(c *gin.Context) {
	if h.unavailableContent() {
		c.JSON(http.StatusServiceUnavailable, services.TechniqueList{Data: []models.Technique{}, Error: services.MsgUnavailable})
		return
	}

	var filters store.TechniqueFilters
	if err := c.ShouldBindQuery(&filters); err != nil || filters.Limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"data": nil, "error": "Invalid filters"})
		return
	}
	if filters.Tier != "" && !services.IsValidPlan(filters.Tier) {
		c.JSON(http.StatusBadRequest, gin.H{"data": nil, "error": "Invalid tier. Must be 'free' or 'pro'."})
		return
	}

	res := h.content.GetTechniques(c.Request.Context(), filters, viewerTier(c))
	c.JSON(resultStatus(res.Error, false), res)
}

func (h *Handler) GetTechnique(c *gin.Context) {
	if h.unavailableContent() {
		c.JSON(http.StatusServiceUnavailable, services.TechniqueResult{Error: services.MsgUnavailable})
		return
	}

	res := h.content.GetTechnique(c.Request.Context(), c.Param("id"), viewerTier(c))
	c.JSON(resultStatus(res.Error, res.NotFound), res)
}

type subscribeRequest struct {
	Email string `json:"email" form:"email"`
}

// Subscribe accepts JSON or a plain form post from the subscribe modal.
func (h *Handler) Subscribe(c *gin.Context) {
	if h.subscribers == nil {
		c.JSON(http.StatusServiceUnavailable, services.SubscribeResult{Error: services.MsgUnavailable})
		return
	}

	var req subscribeRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, services.SubscribeResult{Error: services.MsgInvalidSubscriber})
		return
	}

	res := h.subscribers.Subscribe(c.Request.Context(), req.Email)
	c.JSON(subscribeStatus(res.Status), res)
}

func subscribeStatus(s services.SubscribeStatus) int {
	switch s {
	case services.SubscribeOK:
		return http.StatusOK
	case services.SubscribeConflict:
		return http.StatusConflict
	case services.SubscribeInvalid:
		return http.StatusBadRequest
	case services.SubscribeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
