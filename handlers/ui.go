package handlers

import (
	"net/http"

	"kaizen/services"
	"kaizen/store"
	"kaizen/views"

	"github.com/gin-gonic/gin"
)

const homeListSize = 3

// TechniqueCategories populate the category filter on the techniques page.
var TechniqueCategories = []string{"prompting", "orchestration", "memory", "evaluation", "tooling"}

func (h *Handler) unavailableContent() bool {
	return h.content == nil
}

func (h *Handler) ShowHome(c *gin.Context) {
	data := h.pageData(c, "home", "")
	if h.unavailableContent() {
		data["IssuesError"] = services.MsgUnavailable
		data["TechniquesError"] = services.MsgUnavailable
		c.HTML(http.StatusOK, "home.html", data)
		return
	}

	ctx := c.Request.Context()
	tier := viewerTier(c)

	issues := h.content.GetNewsletterIssues(ctx, homeListSize, tier)
	data["Issues"] = views.NewsletterCards(issues.Data)
	data["IssuesError"] = issues.Error

	techniques := h.content.GetTechniques(ctx, store.TechniqueFilters{Limit: homeListSize}, tier)
	data["Techniques"] = views.TechniqueCards(techniques.Data)
	data["TechniquesError"] = techniques.Error

	c.HTML(http.StatusOK, "home.html", data)
}

func (h *Handler) ShowNewsletter(c *gin.Context) {
	data := h.pageData(c, "newsletter", "Newsletter")
	if h.unavailableContent() {
		data["IssuesError"] = services.MsgUnavailable
		c.HTML(http.StatusOK, "newsletter.html", data)
		return
	}

	issues := h.content.GetNewsletterIssues(c.Request.Context(), 0, viewerTier(c))
	data["Issues"] = views.NewsletterCards(issues.Data)
	data["IssuesError"] = issues.Error
	c.HTML(http.StatusOK, "newsletter.html", data)
}

func (h *Handler) ShowNewsletterIssue(c *gin.Context) {
	if h.unavailableContent() {
		h.renderError(c, http.StatusServiceUnavailable, "Newsletter", services.MsgUnavailable)
		return
	}

	res := h.content.GetNewsletterIssue(c.Request.Context(), c.Param("id"), viewerTier(c))
	if res.Error != "" {
		h.renderError(c, resultStatus(res.Error, res.NotFound), "Newsletter", "Unable to load newsletter issue")
		return
	}

	data := h.pageData(c, "newsletter", res.Data.Title)
	data["Detail"] = views.NewNewsletterDetail(*res.Data)
	c.HTML(http.StatusOK, "newsletter_detail.html", data)
}

func (h *Handler) ShowTechniques(c *gin.Context) {
	var filters store.TechniqueFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		filters = store.TechniqueFilters{}
	}
	if filters.Tier != "" && !services.IsValidPlan(filters.Tier) {
		filters.Tier = ""
	}

	data := h.pageData(c, "techniques", "Techniques")
	data["Filters"] = filters
	data["Filtered"] = !filters.IsZero()
	data["Categories"] = TechniqueCategories

	if h.unavailableContent() {
		data["TechniquesError"] = services.MsgUnavailable
		c.HTML(http.StatusOK, "techniques.html", data)
		return
	}

	techniques := h.content.GetTechniques(c.Request.Context(), filters, viewerTier(c))
	data["Techniques"] = views.TechniqueCards(techniques.Data)
	data["TechniquesError"] = techniques.Error
	c.HTML(http.StatusOK, "techniques.html", data)
}

func (h *Handler) ShowTechnique(c *gin.Context) {
	if h.unavailableContent() {
		h.renderError(c, http.StatusServiceUnavailable, "Techniques", services.MsgUnavailable)
		return
	}

	res := h.content.GetTechnique(c.Request.Context(), c.Param("id"), viewerTier(c))
	if res.Error != "" {
		h.renderError(c, resultStatus(res.Error, res.NotFound), "Techniques", "Unable to load technique details")
		return
	}

	data := h.pageData(c, "techniques", res.Data.Name)
	data["Detail"] = views.NewTechniqueDetail(*res.Data)
	c.HTML(http.StatusOK, "technique_detail.html", data)
}

func (h *Handler) ShowAccount(c *gin.Context) {
	data := h.pageData(c, "account", "Account")
	data["ResetToken"] = c.Query("reset_token")
	c.HTML(http.StatusOK, "account.html", data)
}
