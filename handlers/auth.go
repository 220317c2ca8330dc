package handlers

import (
	"net/http"
	"time"

	"kaizen/auth"
	"kaizen/middleware"

	"github.com/gin-gonic/gin"
)

type AuthInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type emailInput struct {
	Email string `json:"email" binding:"required"`
}

type recoverInput struct {
	Token string `json:"token" binding:"required"`
}

type passwordInput struct {
	Password string `json:"password" binding:"required"`
}

// authStatus maps an auth result to the HTTP status the client sees.
func authStatus(res auth.Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.Error {
	case auth.MsgUnavailable:
		return http.StatusServiceUnavailable
	case auth.MsgInvalidCredentials, auth.MsgNotAuthenticated:
		return http.StatusUnauthorized
	case auth.MsgUserExists:
		return http.StatusConflict
	case auth.MsgInvalidEmail, auth.MsgWeakPassword, auth.MsgInvalidResetLink:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func badAuthInput(c *gin.Context) {
	c.JSON(http.StatusBadRequest, auth.Result{Error: "Invalid JSON"})
}

func (h *Handler) Signup(c *gin.Context) {
	var input AuthInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badAuthInput(c)
		return
	}

	res := h.accounts.SignUp(c.Request.Context(), input.Email, input.Password)
	status := authStatus(res)
	if res.Success {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

func (h *Handler) Login(c *gin.Context) {
	var input AuthInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badAuthInput(c)
		return
	}

	s, res := h.accounts.SignIn(c.Request.Context(), input.Email, input.Password)
	if !res.Success {
		c.JSON(authStatus(res), res)
		return
	}
	h.startSession(c, s)
}

func (h *Handler) Logout(c *gin.Context) {
	res := h.accounts.SignOut(c.Request.Context(), middleware.CurrentSession(c))
	h.clearAuthCookie(c)
	c.JSON(authStatus(res), res)
}

func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var input emailInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badAuthInput(c)
		return
	}

	res := h.accounts.ResetPassword(c.Request.Context(), input.Email)
	c.JSON(authStatus(res), res)
}

// Recover exchanges the token from a reset email for a recovery session.
func (h *Handler) Recover(c *gin.Context) {
	var input recoverInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badAuthInput(c)
		return
	}

	s, res := h.accounts.Recover(c.Request.Context(), input.Token)
	if !res.Success {
		c.JSON(authStatus(res), res)
		return
	}
	h.startSession(c, s)
}

func (h *Handler) UpdatePassword(c *gin.Context) {
	var input passwordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badAuthInput(c)
		return
	}

	res := h.accounts.UpdatePassword(c.Request.Context(), middleware.CurrentSession(c), input.Password)
	c.JSON(authStatus(res), res)
}

func (h *Handler) Me(c *gin.Context) {
	s := middleware.CurrentSession(c)
	if !s.IsAuthenticated() {
		c.JSON(http.StatusOK, gin.H{"authenticated": false, "tier": string(s.Tier())})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user_id":       s.UserID,
		"email":         s.Email,
		"tier":          string(s.Tier()),
		"pro":           s.HasProAccess(),
	})
}

func (h *Handler) startSession(c *gin.Context, s *auth.Session) {
	h.setAuthCookie(c, s.Token, s.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"token":      s.Token,
		"expires_at": s.ExpiresAt,
		"recovery":   s.Recovery,
		"user": gin.H{
			"id":    s.UserID,
			"email": s.Email,
			"tier":  string(s.Tier()),
		},
		"redirect": "/",
	})
}

func (h *Handler) cookieName() string {
	if h.cfg.Auth.CookieName != "" {
		return h.cfg.Auth.CookieName
	}
	return "kaizen_session"
}

func (h *Handler) setAuthCookie(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = int(h.cfg.Auth.TokenTTL.Seconds())
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName(), token, maxAge, "/", "", h.cfg.Auth.SecureCookie, true)
}

func (h *Handler) clearAuthCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName(), "", -1, "/", "", h.cfg.Auth.SecureCookie, true)
}
