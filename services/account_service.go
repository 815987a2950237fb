package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"codeGoalsAPI/internal/types/target"
)

// AccountService binds verified token subjects to account emails in the
// local users table. The HTTP layer uses it to build a per-request account
// provider.
type AccountService struct {
	db *sql.DB
}

func NewAccountService(db *sql.DB) *AccountService {
	return &AccountService{db: db}
}

// Register upserts the local account record for a uid.
func (s *AccountService) Register(ctx context.Context, uid, email, username string) error {
	if uid == "" || email == "" {
		return ErrEmptyInput
	}

	query := `
	INSERT INTO users (uid, email, username, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT(uid) DO UPDATE SET email = $2, username = $3, updated_at = $4
	`
	if _, err := s.db.ExecContext(ctx, query, uid, target.NormalizeEmail(email), username, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to register account: %w", err)
	}
	return nil
}

// EmailFor returns the email bound to a uid.
func (s *AccountService) EmailFor(ctx context.Context, uid string) (string, error) {
	var email string
	err := s.db.QueryRowContext(ctx, `SELECT email FROM users WHERE uid = $1`, uid).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read account: %w", err)
	}
	return email, nil
}
