package store

import (
	"context"
	"database/sql"

	"kaizen/models"
)

// ContentStore reads newsletter issues and techniques. Both tables are read-only here.
type ContentStore struct {
	db *sql.DB
}

func NewContentStore(db *sql.DB) *ContentStore {
	return &ContentStore{db: db}
}

const issueColumns = `id, title, issue_number, publish_date, summary, content_md, tier_required, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIssue(row rowScanner) (models.NewsletterIssue, error) {
	var (
		issue   models.NewsletterIssue
		summary sql.NullString
	)
	err := row.Scan(
		&issue.ID, &issue.Title, &issue.IssueNumber, &issue.PublishDate,
		&summary, &issue.ContentMD, &issue.TierRequired, &issue.CreatedAt,
	)
	issue.Summary = summary.String
	return issue, err
}

func scanTechnique(row rowScanner) (models.Technique, error) {
	var (
		t        models.Technique
		fullSpec []byte
	)
	err := row.Scan(
		&t.ID, &t.Name, &t.Version, &t.Category, &t.Summary,
		&t.TierRequired, &fullSpec, &t.CreatedAt,
	)
	t.FullSpec = decodeJSON(fullSpec)
	return t, err
}

// ListIssues returns issues newest first. limit <= 0 returns all of them.
func (s *ContentStore) ListIssues(ctx context.Context, limit int) ([]models.NewsletterIssue, error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}

	query := `SELECT ` + issueColumns + ` FROM newsletter_issues ORDER BY publish_date DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list newsletter issues", err)
	}
	defer rows.Close()

	issues := []models.NewsletterIssue{}
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, classify("scan newsletter issue", err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list newsletter issues", err)
	}
	return issues, nil
}

func (s *ContentStore) GetIssue(ctx context.Context, id string) (*models.NewsletterIssue, error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+issueColumns+` FROM newsletter_issues WHERE id = $1`, id)
	issue, err := scanIssue(row)
	if err != nil {
		return nil, classify("get newsletter issue", err)
	}
	return &issue, nil
}

func (s *ContentStore) ListTechniques(ctx context.Context, filters TechniqueFilters) ([]models.Technique, error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}

	query, args := BuildTechniqueQuery(filters)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list techniques", err)
	}
	defer rows.Close()

	techniques := []models.Technique{}
	for rows.Next() {
		t, err := scanTechnique(rows)
		if err != nil {
			return nil, classify("scan technique", err)
		}
		techniques = append(techniques, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list techniques", err)
	}
	return techniques, nil
}

func (s *ContentStore) GetTechnique(ctx context.Context, id string) (*models.Technique, error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+techniqueColumns+` FROM techniques WHERE id = $1`, id)
	t, err := scanTechnique(row)
	if err != nil {
		return nil, classify("get technique", err)
	}
	return &t, nil
}
