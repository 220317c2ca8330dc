package handlers

import (
	"net/http"
	"net/url"

	"kaizen/middleware"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ShowPricing(c *gin.Context) {
	c.HTML(http.StatusOK, "pricing.html", h.pageData(c, "pricing", "Pricing"))
}

// Upgrade sends the visitor to the hosted payment link. Signed-in users get
// their email prefilled and their user id attached as the client reference.
func (h *Handler) Upgrade(c *gin.Context) {
	link := h.cfg.Stripe.PaymentLink
	if link == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Billing not enabled"})
		return
	}

	target, err := url.Parse(link)
	if err != nil {
		h.log.WithError(err).Error("invalid payment link")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Billing not enabled"})
		return
	}

	if s := middleware.CurrentSession(c); s.IsAuthenticated() {
		q := target.Query()
		q.Set("prefilled_email", s.Email)
		q.Set("client_reference_id", s.UserID)
		target.RawQuery = q.Encode()
	}

	c.Redirect(http.StatusSeeOther, target.String())
}
