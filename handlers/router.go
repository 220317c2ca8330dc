package handlers

import (
	"html/template"
	"net/http"

	"kaizen/middleware"
	"kaizen/web"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the full HTTP surface: server-rendered pages, the JSON API,
// the Stripe webhook and the batch-job endpoint.
func NewRouter(d Deps) (*gin.Engine, error) {
	h := New(d)

	tmpl, err := web.Templates(template.FuncMap{})
	if err != nil {
		return nil, err
	}
	static, err := web.Static()
	if err != nil {
		return nil, err
	}

	authEnabled := h.cfg.Features.AuthEnabled && h.accounts != nil
	billingEnabled := h.cfg.Features.BillingEnabled

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestContext(h.log))
	r.Use(middleware.SessionLoader(d.Sessions, h.cookieName()))

	r.SetHTMLTemplate(tmpl)
	r.StaticFS("/static", http.FS(static))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	pages := r.Group("/")
	pages.Use(middleware.PageViews(d.PageViews))
	{
		pages.GET("/", h.ShowHome)
		pages.GET("/newsletter", h.ShowNewsletter)
		pages.GET("/newsletter/:id", h.ShowNewsletterIssue)
		pages.GET("/techniques", h.ShowTechniques)
		pages.GET("/techniques/:id", h.ShowTechnique)
		pages.GET("/pricing", h.ShowPricing)
		pages.GET("/account", middleware.FeatureGate(authEnabled), h.ShowAccount)
	}

	r.GET("/upgrade", middleware.FeatureGate(billingEnabled), h.Upgrade)

	limited := middleware.RateLimit(d.Limiter)

	api := r.Group("/api")
	{
		api.GET("/newsletter", h.ListNewsletterIssues)
		api.GET("/newsletter/:id", h.GetNewsletterIssue)
		api.GET("/techniques", h.ListTechniques)
		api.GET("/techniques/:id", h.GetTechnique)

		api.POST("/subscribe", limited, h.Subscribe)
		api.POST("/events", limited, h.TrackEvent)
	}

	authAPI := api.Group("/auth")
	authAPI.Use(middleware.FeatureGate(authEnabled))
	{
		authAPI.POST("/signup", limited, h.Signup)
		authAPI.POST("/signin", limited, h.Login)
		authAPI.POST("/signout", h.Logout)
		authAPI.POST("/reset", limited, h.RequestPasswordReset)
		authAPI.POST("/recover", limited, h.Recover)
		authAPI.POST("/password", middleware.AuthRequired(), h.UpdatePassword)
		authAPI.GET("/me", h.Me)
	}

	r.POST("/webhooks/stripe", middleware.FeatureGate(billingEnabled), h.StripeWebhook)
	r.POST("/jobs/welcome-emails", middleware.JobToken(h.cfg.Jobs.ServiceToken), h.DispatchWelcomeEmails)

	r.NoRoute(h.NotFound)

	return r, nil
}
