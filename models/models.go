package models

import (
	"time"
)

type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

func (t Tier) Valid() bool {
	return t == TierFree || t == TierPro
}

type Subscriber struct {
	ID               string                 `json:"id"`
	Email            string                 `json:"email"`
	Tier             Tier                   `json:"tier"`
	StripeCustomerID string                 `json:"stripe_customer_id,omitempty"`
	UserID           string                 `json:"user_id,omitempty"`
	SubscribedAt     time.Time              `json:"subscribed_at"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

type NewsletterIssue struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	IssueNumber  int       `json:"issue_number"`
	PublishDate  time.Time `json:"publish_date"`
	Summary      string    `json:"summary,omitempty"`
	ContentMD    string    `json:"content_md,omitempty"`
	TierRequired Tier      `json:"tier_required"`
	CreatedAt    time.Time `json:"created_at"`
	Locked       bool      `json:"locked,omitempty"` // Computed per viewer
}

// Technique.FullSpec holds prompts, examples, metrics and best_practices.
type Technique struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Version      string                 `json:"version"`
	Category     string                 `json:"category"`
	Summary      string                 `json:"summary"`
	TierRequired Tier                   `json:"tier_required"`
	FullSpec     map[string]interface{} `json:"full_spec,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	Locked       bool                   `json:"locked,omitempty"` // Computed per viewer
}

const (
	EmailTypeWelcome = "welcome"

	EmailStatusPending = "pending"
	EmailStatusSent    = "sent"
	EmailStatusFailed  = "failed"
)

type EmailLog struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	EmailType    string                 `json:"email_type"`
	Status       string                 `json:"status"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// EventPathPrefix marks page_views rows that encode named events.
const EventPathPrefix = "event:"

type PageView struct {
	PagePath  string    `json:"page_path"`
	ViewedAt  time.Time `json:"viewed_at"`
	Referrer  string    `json:"referrer,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}
