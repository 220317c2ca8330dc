package store

import (
	"context"
	"database/sql"
	"strings"

	"kaizen/models"
)

type SubscriberStore struct {
	db *sql.DB
}

func NewSubscriberStore(db *sql.DB) *SubscriberStore {
	return &SubscriberStore{db: db}
}

// NormalizeEmail trims and lower-cases an address before it is stored or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Insert creates a free-tier subscriber. A duplicate email returns ErrConflict.
func (s *SubscriberStore) Insert(ctx context.Context, email string) (*models.Subscriber, error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}

	sub := models.Subscriber{Email: NormalizeEmail(email), Tier: models.TierFree}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO subscribers (email, tier) VALUES ($1, $2) RETURNING id, subscribed_at`,
		sub.Email, sub.Tier,
	).Scan(&sub.ID, &sub.SubscribedAt)
	if err != nil {
		return nil, classify("insert subscriber", err)
	}
	return &sub, nil
}

func (s *SubscriberStore) GetByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}

	var (
		sub        models.Subscriber
		customerID sql.NullString
		userID     sql.NullString
		metadata   []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, tier, stripe_customer_id, user_id, subscribed_at, metadata
		FROM subscribers
		WHERE email = $1
	`, NormalizeEmail(email)).Scan(
		&sub.ID, &sub.Email, &sub.Tier, &customerID, &userID, &sub.SubscribedAt, &metadata,
	)
	if err != nil {
		return nil, classify("get subscriber", err)
	}
	sub.StripeCustomerID = customerID.String
	sub.UserID = userID.String
	sub.Metadata = decodeJSON(metadata)
	return &sub, nil
}

// TierByUserID reads the tier of the subscriber linked to an account.
func (s *SubscriberStore) TierByUserID(ctx context.Context, userID string) (models.Tier, error) {
	if s.db == nil {
		return "", ErrUnavailable
	}

	var tier models.Tier
	err := s.db.QueryRowContext(ctx,
		`SELECT tier FROM subscribers WHERE user_id = $1`, userID,
	).Scan(&tier)
	if err != nil {
		return "", classify("read tier", err)
	}
	return tier, nil
}

// UpsertPro marks the subscriber with this email as pro, creating the row when
// none exists. The single statement keeps concurrent checkouts for one email
// from producing two rows.
func (s *SubscriberStore) UpsertPro(ctx context.Context, email, customerID string, metadata map[string]interface{}) (int64, error) {
	if s.db == nil {
		return 0, ErrUnavailable
	}

	meta, err := encodeJSON(metadata)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO subscribers (email, tier, stripe_customer_id, metadata)
		VALUES ($1, 'pro', NULLIF($2, ''), $3::jsonb)
		ON CONFLICT (email) DO UPDATE SET
			tier = 'pro',
			stripe_customer_id = COALESCE(EXCLUDED.stripe_customer_id, subscribers.stripe_customer_id),
			metadata = subscribers.metadata || EXCLUDED.metadata
	`, NormalizeEmail(email), customerID, meta)
	if err != nil {
		return 0, classify("upsert pro subscriber", err)
	}
	return res.RowsAffected()
}

// SetTierByCustomerID updates every subscriber carrying the Stripe customer id.
func (s *SubscriberStore) SetTierByCustomerID(ctx context.Context, customerID string, tier models.Tier, metadata map[string]interface{}) (int64, error) {
	if s.db == nil {
		return 0, ErrUnavailable
	}

	meta, err := encodeJSON(metadata)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE subscribers
		SET tier = $2, metadata = metadata || $3::jsonb
		WHERE stripe_customer_id = $1
	`, customerID, tier, meta)
	if err != nil {
		return 0, classify("update tier", err)
	}
	return res.RowsAffected()
}

func (s *SubscriberStore) MergeMetadataByCustomerID(ctx context.Context, customerID string, metadata map[string]interface{}) (int64, error) {
	if s.db == nil {
		return 0, ErrUnavailable
	}

	meta, err := encodeJSON(metadata)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE subscribers
		SET metadata = metadata || $2::jsonb
		WHERE stripe_customer_id = $1
	`, customerID, meta)
	if err != nil {
		return 0, classify("update metadata", err)
	}
	return res.RowsAffected()
}

// LinkUser attaches an account to the subscriber row for its email, creating a
// free row when the email never subscribed.
func (s *SubscriberStore) LinkUser(ctx context.Context, email, userID string) error {
	if s.db == nil {
		return ErrUnavailable
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscribers (email, tier, user_id)
		VALUES ($1, 'free', $2)
		ON CONFLICT (email) DO UPDATE SET user_id = EXCLUDED.user_id
	`, NormalizeEmail(email), userID)
	return classify("link user", err)
}
