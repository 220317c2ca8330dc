package auth

import (
	"context"
	"time"

	"kaizen/models"
	"kaizen/services"
)

// Session is the signed-in state for one request. A nil *Session is a guest.
type Session struct {
	UserID    string
	Email     string
	Token     string
	TokenID   string
	ExpiresAt time.Time
	// Recovery is set for sessions created from a password-reset link.
	Recovery bool

	tier models.Tier
}

func (s *Session) IsAuthenticated() bool {
	return s != nil && s.UserID != ""
}

// Tier is the subscriber tier read when the session was resolved; guests and
// unknown values are free.
func (s *Session) Tier() models.Tier {
	if s == nil {
		return models.TierFree
	}
	return services.EffectiveTier(s.tier)
}

func (s *Session) HasProAccess() bool {
	return s.Tier() == models.TierPro
}

func (s *Session) CanAccessContent(required models.Tier) bool {
	return services.CanAccessContent(s.Tier(), required)
}

type sessionKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the request session, or nil for guests.
func FromContext(ctx context.Context) *Session {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// NewSession builds a session for an already-verified identity.
func NewSession(userID, email string, tier models.Tier) *Session {
	return &Session{UserID: userID, Email: email, tier: tier}
}
