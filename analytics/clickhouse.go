package analytics

import (
	"context"
	"fmt"
	"time"

	"kaizen/config"
	"kaizen/models"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const createPageViewsTable = `
CREATE TABLE IF NOT EXISTS page_views (
    page_path  String,
    viewed_at  DateTime64(3, 'UTC'),
    referrer   String,
    user_agent String
) ENGINE = MergeTree()
ORDER BY (page_path, viewed_at)`

type execer interface {
	Exec(ctx context.Context, query string, args ...interface{}) error
}

// ClickHouseSink mirrors page views into ClickHouse for reporting.
type ClickHouseSink struct {
	conn execer
}

// NewClickHouseSink connects, pings and ensures the page_views table exists.
func NewClickHouseSink(cfg config.ClickHouseConfig) (*ClickHouseSink, driver.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		DialTimeout:      10 * time.Second,
		MaxOpenConns:     5,
		MaxIdleConns:     2,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	sink := &ClickHouseSink{conn: conn}
	if err := sink.EnsureSchema(ctx); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return sink, conn, nil
}

func (s *ClickHouseSink) EnsureSchema(ctx context.Context) error {
	if err := s.conn.Exec(ctx, createPageViewsTable); err != nil {
		return fmt.Errorf("failed to create page_views table: %w", err)
	}
	return nil
}

func (s *ClickHouseSink) RecordPageView(ctx context.Context, pv models.PageView) error {
	return s.conn.Exec(ctx,
		`INSERT INTO page_views (page_path, viewed_at, referrer, user_agent) VALUES (?, ?, ?, ?)`,
		pv.PagePath, pv.ViewedAt, pv.Referrer, pv.UserAgent,
	)
}
