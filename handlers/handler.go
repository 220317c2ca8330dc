package handlers

import (
	"context"
	"net/http"

	"kaizen/auth"
	"kaizen/config"
	"kaizen/logging"
	"kaizen/middleware"
	"kaizen/models"
	"kaizen/services"
	"kaizen/store"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v76"
)

type ContentReader interface {
	GetNewsletterIssues(ctx context.Context, limit int, viewer models.Tier) services.IssueList
	GetNewsletterIssue(ctx context.Context, id string, viewer models.Tier) services.IssueResult
	GetTechniques(ctx context.Context, filters store.TechniqueFilters, viewer models.Tier) services.TechniqueList
	GetTechnique(ctx context.Context, id string, viewer models.Tier) services.TechniqueResult
}

type Subscriber interface {
	Subscribe(ctx context.Context, email string) services.SubscribeResult
}

type Accounts interface {
	SignUp(ctx context.Context, email, password string) auth.Result
	SignIn(ctx context.Context, email, password string) (*auth.Session, auth.Result)
	SignOut(ctx context.Context, s *auth.Session) auth.Result
	ResetPassword(ctx context.Context, email string) auth.Result
	Recover(ctx context.Context, token string) (*auth.Session, auth.Result)
	UpdatePassword(ctx context.Context, s *auth.Session, newPassword string) auth.Result
}

type EventProcessor interface {
	Process(ctx context.Context, event stripe.Event) services.Outcome
}

type Dispatcher interface {
	Run(ctx context.Context) (*services.DispatchReport, error)
}

type EventTracker interface {
	TrackEvent(name string, data map[string]interface{}, userAgent string)
}

// Deps are the collaborators the HTTP layer needs. Any of them may be nil;
// the matching routes then report the feature as unavailable.
type Deps struct {
	Config      *config.Config
	Logger      *logging.Logger
	Content     ContentReader
	Subscribers Subscriber
	Accounts    Accounts
	Sessions    middleware.SessionResolver
	TierSync    EventProcessor
	Welcome     Dispatcher
	Events      EventTracker
	PageViews   middleware.PageViewTracker
	Limiter     *middleware.RateLimiter
}

type Handler struct {
	cfg         *config.Config
	log         *logging.Logger
	content     ContentReader
	subscribers Subscriber
	accounts    Accounts
	tierSync    EventProcessor
	welcome     Dispatcher
	events      EventTracker
}

func New(d Deps) *Handler {
	cfg := d.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	log := d.Logger
	if log == nil {
		log = logging.GetGlobalLogger()
	}
	return &Handler{
		cfg:         cfg,
		log:         log,
		content:     d.Content,
		subscribers: d.Subscribers,
		accounts:    d.Accounts,
		tierSync:    d.TierSync,
		welcome:     d.Welcome,
		events:      d.Events,
	}
}

// viewerTier is the tier used for gating content on this request.
func viewerTier(c *gin.Context) models.Tier {
	return middleware.CurrentSession(c).Tier()
}

// pageData carries the fields every page template reads.
func (h *Handler) pageData(c *gin.Context, page, title string) gin.H {
	s := middleware.CurrentSession(c)
	data := gin.H{
		"Title":       title,
		"Page":        page,
		"AuthEnabled": h.cfg.Features.AuthEnabled && h.accounts != nil,
		"SignedIn":    s.IsAuthenticated(),
		"Tier":        string(s.Tier()),
		"IsPro":       s.HasProAccess(),
		"Email":       "",
		"Recovery":    false,
		"PaymentLink": "",
	}
	if s.IsAuthenticated() {
		data["Email"] = s.Email
		data["Recovery"] = s.Recovery
	}
	if h.cfg.Features.BillingEnabled {
		data["PaymentLink"] = h.cfg.Stripe.PaymentLink
	}
	return data
}

func (h *Handler) renderError(c *gin.Context, status int, heading, message string) {
	data := h.pageData(c, "", heading)
	data["Heading"] = heading
	data["Message"] = message
	c.HTML(status, "error.html", data)
}

// NotFound renders the HTML 404 page for unknown routes.
func (h *Handler) NotFound(c *gin.Context) {
	h.renderError(c, http.StatusNotFound, "Page not found", "The page you were looking for does not exist.")
}

// resultStatus maps a read error message to an HTTP status.
func resultStatus(errMsg string, notFound bool) int {
	switch {
	case errMsg == "":
		return http.StatusOK
	case notFound:
		return http.StatusNotFound
	case errMsg == services.MsgUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
