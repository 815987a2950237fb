package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"codeGoalsAPI/internal/auth"
	"codeGoalsAPI/internal/remote"
	"codeGoalsAPI/internal/types/activity"
	"codeGoalsAPI/internal/types/target"
)

// ActivityService tracks daily practice volume and serves the dashboard's
// heatmap window.
type ActivityService struct {
	db    *sql.DB
	store remote.Store
}

func NewActivityService(db *sql.DB, store remote.Store) *ActivityService {
	return &ActivityService{db: db, store: store}
}

// MirrorToday recomputes today's problem/topic counts from the local store
// and merge-writes them to the account's dailyActivity collection.
func (s *ActivityService) MirrorToday(ctx context.Context, provider auth.AccountProvider) error {
	uid, err := provider.CurrentAccountID()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	email, err := provider.CurrentAccountEmail()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}

	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	problems, err := s.countCreatedSince(ctx, email, target.TypeProblem, dayStart)
	if err != nil {
		return err
	}
	topics, err := s.countCreatedSince(ctx, email, target.TypeTopic, dayStart)
	if err != nil {
		return err
	}

	doc := &activity.DailyActivity{
		ProblemCount: problems,
		TopicCount:   topics,
		Timestamp:    now,
	}
	return s.store.SetDailyActivity(ctx, uid, activity.DateKey(now), doc)
}

func (s *ActivityService) countCreatedSince(ctx context.Context, email string, kind target.TargetType, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM targets WHERE user_email = $1 AND type = $2 AND created_at >= $3`,
		target.NormalizeEmail(email), kind, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count daily activity: %w", err)
	}
	return n, nil
}

// ActivityWindow returns up to days of recorded activity, newest first.
func (s *ActivityService) ActivityWindow(ctx context.Context, provider auth.AccountProvider, days int) ([]*activity.DailyActivity, error) {
	uid, err := provider.CurrentAccountID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}

	all, err := s.store.ListDailyActivity(ctx, uid)
	if err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Date > all[j].Date })
	if days > 0 && len(all) > days {
		all = all[:days]
	}
	return all, nil
}

// CachedHandle returns the account's stored competitive-programming handle.
// It opportunistically refreshes from the remote user document with a short
// bounded wait; on timeout or any remote failure the locally cached value
// (possibly empty) is returned rather than blocking the dashboard.
func (s *ActivityService) CachedHandle(ctx context.Context, provider auth.AccountProvider) string {
	uid, err := provider.CurrentAccountID()
	if err != nil {
		return ""
	}
	local := s.localHandle(ctx, uid)

	fetchCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	doc, err := s.store.GetUser(fetchCtx, uid)
	if err != nil {
		if !errors.Is(err, remote.ErrNotFound) {
			log.Printf("ActivityService: handle refresh skipped: %v", err)
		}
		return local
	}
	if doc.CodeforcesHandle != "" && doc.CodeforcesHandle != local {
		s.storeLocalHandle(ctx, uid, doc.CodeforcesHandle)
		return doc.CodeforcesHandle
	}
	return local
}

// The cache key carries the uid: one hosted store serves many accounts.
const keyCodeforcesHandle = "codeforces_handle"

func (s *ActivityService) localHandle(ctx context.Context, uid string) string {
	var v string
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, accountKey(keyCodeforcesHandle, uid)).Scan(&v); err != nil {
		return ""
	}
	return v
}

func (s *ActivityService) storeLocalHandle(ctx context.Context, uid, handle string) {
	query := `
	INSERT INTO settings (key, value) VALUES ($1, $2)
	ON CONFLICT(key) DO UPDATE SET value = $2
	`
	if _, err := s.db.ExecContext(ctx, query, accountKey(keyCodeforcesHandle, uid), handle); err != nil {
		log.Printf("ActivityService: failed to cache handle: %v", err)
	}
}
