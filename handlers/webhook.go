package handlers

import (
	"io"
	"net/http"
	"time"

	"kaizen/logging"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	maxWebhookBytes  = int64(65536)
	webhookTolerance = 5 * time.Minute
)

// StripeWebhook verifies and applies a Stripe event. Once the signature checks
// out the event is always acknowledged with 200; processing failures are logged.
func (h *Handler) StripeWebhook(c *gin.Context) {
	log := logging.FromContext(c.Request.Context()).WithField("component", "stripe_webhook")

	signature := c.GetHeader("Stripe-Signature")
	secret := h.cfg.Stripe.WebhookSecret
	if signature == "" || secret == "" {
		c.String(http.StatusBadRequest, "Webhook signature or secret missing")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.WithError(err).Warn("failed to read webhook body")
		c.String(http.StatusBadRequest, "Webhook Error: "+err.Error())
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		Tolerance:                webhookTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		log.WithError(err).Warn("webhook signature verification failed")
		c.String(http.StatusBadRequest, "Webhook Error: "+err.Error())
		return
	}

	if h.tierSync == nil {
		log.WithField("event_id", event.ID).Error("tier sync not configured, event dropped")
	} else {
		h.tierSync.Process(c.Request.Context(), event)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
