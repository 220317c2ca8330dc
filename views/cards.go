package views

import (
	"time"

	"kaizen/models"
)

const dateLayout = "January 2, 2006"

type Badge struct {
	Label string
	Class string
}

func TierBadge(tier models.Tier) Badge {
	if tier == models.TierPro {
		return Badge{Label: "Pro Only", Class: "tier-pro"}
	}
	return Badge{Label: "Free", Class: "tier-free"}
}

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

type NewsletterCard struct {
	ID          string
	URL         string
	Title       string
	Date        string
	IssueNumber int
	Summary     string
	Badge       Badge
	Locked      bool
	Action      string
}

func NewNewsletterCard(issue models.NewsletterIssue) NewsletterCard {
	summary := issue.Summary
	if summary == "" {
		summary = "Click to read more..."
	}
	action := "Read Article →"
	if issue.Locked {
		action = "🔒 Pro Required"
	}
	return NewsletterCard{
		ID:          issue.ID,
		URL:         "/newsletter/" + issue.ID,
		Title:       issue.Title,
		Date:        FormatDate(issue.PublishDate),
		IssueNumber: issue.IssueNumber,
		Summary:     summary,
		Badge:       TierBadge(issue.TierRequired),
		Locked:      issue.Locked,
		Action:      action,
	}
}

func NewsletterCards(issues []models.NewsletterIssue) []NewsletterCard {
	cards := make([]NewsletterCard, 0, len(issues))
	for _, issue := range issues {
		cards = append(cards, NewNewsletterCard(issue))
	}
	return cards
}

type TechniqueCard struct {
	ID       string
	URL      string
	Name     string
	Version  string
	Category string
	Summary  string
	Badge    Badge
	Locked   bool
	Action   string
}

func NewTechniqueCard(t models.Technique) TechniqueCard {
	action := "View Details →"
	if t.Locked {
		action = "🔒 Pro Required"
	}
	return TechniqueCard{
		ID:       t.ID,
		URL:      "/techniques/" + t.ID,
		Name:     t.Name,
		Version:  t.Version,
		Category: t.Category,
		Summary:  t.Summary,
		Badge:    TierBadge(t.TierRequired),
		Locked:   t.Locked,
		Action:   action,
	}
}

func TechniqueCards(techniques []models.Technique) []TechniqueCard {
	cards := make([]TechniqueCard, 0, len(techniques))
	for _, t := range techniques {
		cards = append(cards, NewTechniqueCard(t))
	}
	return cards
}
