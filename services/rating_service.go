package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"codeGoalsAPI/internal/auth"
	"codeGoalsAPI/internal/remote"
	"codeGoalsAPI/internal/types/profile"
	"codeGoalsAPI/internal/types/target"
)

const (
	onTimeReward     = 0.02
	latePenaltyPerMn = 0.01
	defaultRating    = 5.0
	ratingCeiling    = 10.0
)

// RatingService maintains the account's scalar discipline rating. It is
// invoked synchronously on target status transitions, independent of sync.
type RatingService struct {
	db    *sql.DB
	store remote.Store
}

func NewRatingService(db *sql.DB, store remote.Store) *RatingService {
	return &RatingService{db: db, store: store}
}

// CompletionDelta computes the rating change for a completed target. No
// deadline or an on-time finish earns a fixed reward; a late finish costs
// a penalty per whole minute of lateness.
func CompletionDelta(deadline *time.Time, completedAt time.Time) float64 {
	if deadline == nil {
		return onTimeReward
	}
	if !completedAt.After(*deadline) {
		return onTimeReward
	}
	minutesLate := int(completedAt.Sub(*deadline).Minutes())
	return -latePenaltyPerMn * float64(minutesLate)
}

// ClampDisplay bounds a rating to the [0, 10] presentation range.
func ClampDisplay(rating float64) float64 {
	if rating < 0 {
		return 0
	}
	if rating > ratingCeiling {
		return ratingCeiling
	}
	return rating
}

// OnTargetCompleted applies the completion delta to the persisted rating,
// clamping at zero, and best-effort mirrors the new value to the public
// profile so friends can read it. Mirror failures are non-fatal; the next
// mutation retries them.
func (s *RatingService) OnTargetCompleted(ctx context.Context, provider auth.AccountProvider, deadline *time.Time, completedAt time.Time) (float64, error) {
	uid, err := provider.CurrentAccountID()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	email, err := provider.CurrentAccountEmail()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}

	delta := CompletionDelta(deadline, completedAt)

	current, err := s.GetRating(ctx, uid)
	if err != nil {
		return 0, err
	}

	updated := current + delta
	if updated < 0 {
		updated = 0
	}

	if err := s.persistRating(ctx, uid, email, updated); err != nil {
		return 0, err
	}

	s.mirrorRating(ctx, uid, email, updated)
	return updated, nil
}

// GetRating returns the locally persisted rating, defaulting to 5.0 for an
// account with no row yet.
func (s *RatingService) GetRating(ctx context.Context, uid string) (float64, error) {
	var rating float64
	err := s.db.QueryRowContext(ctx, `SELECT rating FROM users WHERE uid = $1`, uid).Scan(&rating)
	if errors.Is(err, sql.ErrNoRows) {
		return defaultRating, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read rating: %w", err)
	}
	return rating, nil
}

func (s *RatingService) persistRating(ctx context.Context, uid, email string, rating float64) error {
	query := `
	INSERT INTO users (uid, email, rating, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT(uid) DO UPDATE SET rating = $3, updated_at = $4
	`
	if _, err := s.db.ExecContext(ctx, query, uid, email, rating, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to persist rating: %w", err)
	}
	return nil
}

// mirrorRating pushes the rating and solve counts to users/{uid} and
// userProfiles/{emailKey}.
func (s *RatingService) mirrorRating(ctx context.Context, uid, email string, rating float64) {
	solved, err := s.solvedCount(ctx, email)
	if err != nil {
		log.Printf("RatingService: could not count solves for mirror: %v", err)
	}

	fields := map[string]any{
		"rating":       rating,
		"email":        email,
		"allTimeSolve": solved,
	}
	if err := s.store.SetUserFields(ctx, uid, fields); err != nil {
		log.Printf("RatingService: failed to mirror rating to user doc: %v", err)
	}

	r := rating
	p := &profile.PublicProfile{
		UID:         uid,
		Email:       email,
		Rating:      &r,
		LastUpdated: time.Now().UTC(),
	}
	if err := s.store.SetPublicProfile(ctx, profile.EmailKey(email), p); err != nil {
		log.Printf("RatingService: failed to mirror rating to public profile: %v", err)
	}
}

func (s *RatingService) solvedCount(ctx context.Context, email string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM targets WHERE user_email = $1 AND status = $2`,
		target.NormalizeEmail(email), target.StatusAchieved).Scan(&n)
	return n, err
}

// Settings keys for the dashboard accumulator's running state. Keys are
// scoped per account: the hosted server keeps many accounts in one store.
const (
	keyPersonalRating      = "personal_rating"
	keyPersonalPrevSolved  = "personal_prev_solved"
	keyPersonalPrevPending = "personal_prev_pending"
)

func accountKey(key, account string) string {
	return key + ":" + account
}

// PersonalRating is the dashboard metric: a separate, simpler accumulator
// over count deltas since the last check. It shares nothing with the
// deadline-based rating above.
func (s *RatingService) PersonalRating(ctx context.Context, email string) (float64, error) {
	email = target.NormalizeEmail(email)

	solved, err := s.countStatus(ctx, email, target.StatusAchieved)
	if err != nil {
		return 0, err
	}
	pending, err := s.countStatus(ctx, email, target.StatusPending)
	if err != nil {
		return 0, err
	}

	rating := s.settingFloat(ctx, accountKey(keyPersonalRating, email), defaultRating)
	prevSolved := int(s.settingFloat(ctx, accountKey(keyPersonalPrevSolved, email), 0))
	prevPending := int(s.settingFloat(ctx, accountKey(keyPersonalPrevPending, email), 0))

	if solved > prevSolved {
		rating += 0.15 * float64(solved-prevSolved)
	}
	if pending > prevPending {
		rating -= 0.05 * float64(pending-prevPending)
	}
	rating = ClampDisplay(rating)

	s.putSetting(ctx, accountKey(keyPersonalRating, email), strconv.FormatFloat(rating, 'f', -1, 64))
	s.putSetting(ctx, accountKey(keyPersonalPrevSolved, email), strconv.Itoa(solved))
	s.putSetting(ctx, accountKey(keyPersonalPrevPending, email), strconv.Itoa(pending))

	return rating, nil
}

func (s *RatingService) countStatus(ctx context.Context, email string, status target.TargetStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM targets WHERE user_email = $1 AND status = $2`,
		email, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s targets: %w", status, err)
	}
	return n, nil
}

func (s *RatingService) settingFloat(ctx context.Context, key string, fallback float64) float64 {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&v)
	if err != nil {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func (s *RatingService) putSetting(ctx context.Context, key, value string) {
	query := `
	INSERT INTO settings (key, value) VALUES ($1, $2)
	ON CONFLICT(key) DO UPDATE SET value = $2
	`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		log.Printf("RatingService: failed to store setting %s: %v", key, err)
	}
}
