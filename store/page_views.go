package store

import (
	"context"
	"database/sql"
	"time"

	"kaizen/models"
)

// PageViewStore appends to the page_views analytics table.
type PageViewStore struct {
	db *sql.DB
}

func NewPageViewStore(db *sql.DB) *PageViewStore {
	return &PageViewStore{db: db}
}

func (s *PageViewStore) RecordPageView(ctx context.Context, pv models.PageView) error {
	if s.db == nil {
		return ErrUnavailable
	}
	if pv.ViewedAt.IsZero() {
		pv.ViewedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO page_views (page_path, viewed_at, referrer, user_agent)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
	`, pv.PagePath, pv.ViewedAt, pv.Referrer, pv.UserAgent)
	return classify("record page view", err)
}
