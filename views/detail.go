package views

import (
	"encoding/json"
	"fmt"
	"html/template"

	"kaizen/models"
)

type NewsletterDetail struct {
	Card NewsletterCard
	Tier models.Tier
	// Locked details show the upgrade prompt instead of Body.
	Locked bool
	Body   template.HTML
}

func NewNewsletterDetail(issue models.NewsletterIssue) NewsletterDetail {
	d := NewsletterDetail{
		Card:   NewNewsletterCard(issue),
		Tier:   issue.TierRequired,
		Locked: issue.Locked,
	}
	if !issue.Locked {
		d.Body = RenderMarkdown(issue.ContentMD)
	}
	return d
}

type Metric struct {
	Label string
	Value string
}

type TechniqueDetail struct {
	Card     TechniqueCard
	Tier     models.Tier
	Locked   bool
	Metrics  []Metric
	SpecJSON string
}

var metricKeys = []struct{ key, label string }{
	{"speed", "Speed"},
	{"cost", "Cost"},
	{"accuracy", "Accuracy"},
}

func NewTechniqueDetail(t models.Technique) TechniqueDetail {
	d := TechniqueDetail{
		Card:   NewTechniqueCard(t),
		Tier:   t.TierRequired,
		Locked: t.Locked,
	}
	if t.Locked {
		return d
	}

	d.Metrics = ExpectedImprovements(t.FullSpec)
	spec := t.FullSpec
	if spec == nil {
		spec = map[string]interface{}{}
	}
	if b, err := json.MarshalIndent(spec, "", "  "); err == nil {
		d.SpecJSON = string(b)
	}
	return d
}

// ExpectedImprovements reads metrics.expected_improvements.{speed,cost,accuracy}.value
// from a technique spec, skipping any that are missing.
func ExpectedImprovements(spec map[string]interface{}) []Metric {
	metrics, _ := spec["metrics"].(map[string]interface{})
	improvements, _ := metrics["expected_improvements"].(map[string]interface{})

	var out []Metric
	for _, m := range metricKeys {
		entry, ok := improvements[m.key].(map[string]interface{})
		if !ok {
			continue
		}
		value, ok := entry["value"]
		if !ok || value == nil {
			continue
		}
		out = append(out, Metric{Label: m.label, Value: fmt.Sprint(value)})
	}
	return out
}
