package store

import (
	"context"
	"database/sql"
	"time"

	"kaizen/models"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// Create inserts an account. A taken email returns ErrConflict.
func (s *UserStore) Create(ctx context.Context, email, passwordHash string) (*models.User, error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}

	user := models.User{Email: NormalizeEmail(email), PasswordHash: passwordHash}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash) VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`, user.Email, passwordHash).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, classify("create user", err)
	}
	return &user, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getBy(ctx, "email", NormalizeEmail(email))
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.getBy(ctx, "id", id)
}

func (s *UserStore) getBy(ctx context.Context, column, value string) (*models.User, error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}

	var user models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at, updated_at FROM users WHERE `+column+` = $1`,
		value,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, classify("get user", err)
	}
	return &user, nil
}

func (s *UserStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if s.db == nil {
		return ErrUnavailable
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
		id, passwordHash,
	)
	if err != nil {
		return classify("update password", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateReset stores the hash of a password-reset token.
func (s *UserStore) CreateReset(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	if s.db == nil {
		return ErrUnavailable
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token_hash, user_id, expires_at) VALUES ($1, $2, $3)
	`, tokenHash, userID, expiresAt)
	return classify("create password reset", err)
}

// ConsumeReset marks an unused, unexpired reset token as used and returns its user.
func (s *UserStore) ConsumeReset(ctx context.Context, tokenHash string) (string, error) {
	if s.db == nil {
		return "", ErrUnavailable
	}

	var userID string
	err := s.db.QueryRowContext(ctx, `
		UPDATE password_resets
		SET used_at = NOW()
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > NOW()
		RETURNING user_id
	`, tokenHash).Scan(&userID)
	if err != nil {
		return "", classify("consume password reset", err)
	}
	return userID, nil
}
