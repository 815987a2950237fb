package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"codeGoalsAPI/internal/auth"
	"codeGoalsAPI/internal/remote"
	"codeGoalsAPI/internal/resolver"
	"codeGoalsAPI/internal/types/friendship"
	"codeGoalsAPI/internal/types/target"
)

// FriendService manages the one-directional friend graph. Edges are
// local-first: an add or remove must succeed locally before the remote
// mirror is attempted, and local validation failures never reach the
// network.
type FriendService struct {
	db    *sql.DB
	store remote.Store
	chain *resolver.Chain
}

func NewFriendService(db *sql.DB, store remote.Store, chain *resolver.Chain) *FriendService {
	return &FriendService{db: db, store: store, chain: chain}
}

// AddFriend records a directed edge from the owner to the friend. The
// friend's account gets no record of this.
func (s *FriendService) AddFriend(ctx context.Context, provider auth.AccountProvider, friendEmail string) (*friendship.Friendship, error) {
	ownerEmail, err := provider.CurrentAccountEmail()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}

	friendEmail = target.NormalizeEmail(friendEmail)
	if friendEmail == "" {
		return nil, ErrEmptyInput
	}
	if friendEmail == ownerEmail {
		return nil, ErrSelfFriend
	}

	existing, err := s.findEdge(ctx, ownerEmail, friendEmail)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateFriend
	}

	edge := &friendship.Friendship{
		UserEmail:   ownerEmail,
		FriendEmail: friendEmail,
		AddedAt:     time.Now().UTC(),
	}

	query := `
	INSERT INTO friends (user_email, friend_email, friend_uid, added_at)
	VALUES ($1, $2, $3, $4)
	RETURNING id
	`
	if err := s.db.QueryRowContext(ctx, query, edge.UserEmail, edge.FriendEmail, "", edge.AddedAt).Scan(&edge.ID); err != nil {
		return nil, fmt.Errorf("failed to add friend: %w", err)
	}

	// Best-effort remote mirror; the edge is already durable locally.
	if uid, err := provider.CurrentAccountID(); err == nil {
		doc := &remote.FriendDoc{FriendEmail: friendEmail, AddedAt: edge.AddedAt}
		if err := s.store.SetFriend(ctx, uid, friendEmail, doc); err != nil {
			log.Printf("FriendService: failed to mirror friend edge %s: %v", friendEmail, err)
		}
	}

	return edge, nil
}

// RemoveFriend destroys the directed edge, local-first.
func (s *FriendService) RemoveFriend(ctx context.Context, provider auth.AccountProvider, friendEmail string) error {
	ownerEmail, err := provider.CurrentAccountEmail()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}

	friendEmail = target.NormalizeEmail(friendEmail)
	if friendEmail == "" {
		return ErrEmptyInput
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM friends WHERE user_email = $1 AND friend_email = $2`,
		ownerEmail, friendEmail)
	if err != nil {
		return fmt.Errorf("failed to remove friend: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	if uid, err := provider.CurrentAccountID(); err == nil {
		if err := s.store.DeleteFriend(ctx, uid, friendEmail); err != nil {
			log.Printf("FriendService: failed to remove remote friend edge %s: %v", friendEmail, err)
		}
	}
	return nil
}

// ListFriends returns the owner's edges, oldest first.
func (s *FriendService) ListFriends(ctx context.Context, ownerEmail string) ([]*friendship.Friendship, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_email, friend_email, friend_uid, added_at FROM friends WHERE user_email = $1 ORDER BY added_at`,
		target.NormalizeEmail(ownerEmail))
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	defer rows.Close()

	var out []*friendship.Friendship
	for rows.Next() {
		f := &friendship.Friendship{}
		if err := rows.Scan(&f.ID, &f.UserEmail, &f.FriendEmail, &f.FriendUID, &f.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan friend: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetFriendPublicStats resolves the friend's account id through the
// fallback chain, then reads their public rating and solve count. A denied
// read degrades the stats to unavailable instead of failing the call.
func (s *FriendService) GetFriendPublicStats(ctx context.Context, provider auth.AccountProvider, friendEmail string) (*friendship.PublicStats, error) {
	ownerEmail, err := provider.CurrentAccountEmail()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}

	friendEmail = target.NormalizeEmail(friendEmail)
	edge, err := s.findEdge(ctx, ownerEmail, friendEmail)
	if err != nil {
		return nil, err
	}

	uid, stage, err := s.chain.Resolve(ctx, friendEmail, edge.FriendUID)
	if err != nil {
		if errors.Is(err, resolver.ErrNotFound) {
			return nil, fmt.Errorf("%w: no account for %s", ErrNotFound, friendEmail)
		}
		return nil, err
	}

	if uid != edge.FriendUID {
		log.Printf("FriendService: resolved %s via %s, caching uid", friendEmail, stage)
		s.cacheFriendUID(ctx, provider, edge, uid)
	}

	stats := &friendship.PublicStats{FriendEmail: friendEmail, FriendUID: uid}

	userDoc, err := s.store.GetUser(ctx, uid)
	switch {
	case err == nil:
		r := userDoc.Rating
		n := userDoc.AllTimeSolve
		stats.Rating = &r
		stats.SolvedCount = &n
	case errors.Is(err, remote.ErrPermissionDenied), errors.Is(err, remote.ErrNotFound):
		log.Printf("FriendService: stats unavailable for %s: %v", friendEmail, err)
	default:
		return nil, err
	}

	return stats, nil
}

// cacheFriendUID writes a freshly resolved uid back onto the edge, locally
// and on the remote mirror, to shortcut future lookups.
func (s *FriendService) cacheFriendUID(ctx context.Context, provider auth.AccountProvider, edge *friendship.Friendship, uid string) {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE friends SET friend_uid = $1 WHERE id = $2`, uid, edge.ID); err != nil {
		log.Printf("FriendService: failed to cache friend uid: %v", err)
		return
	}
	edge.FriendUID = uid

	if ownerUID, err := provider.CurrentAccountID(); err == nil {
		doc := &remote.FriendDoc{FriendEmail: edge.FriendEmail, FriendUID: uid, AddedAt: edge.AddedAt}
		if err := s.store.SetFriend(ctx, ownerUID, edge.FriendEmail, doc); err != nil {
			log.Printf("FriendService: failed to mirror cached uid: %v", err)
		}
	}
}

func (s *FriendService) findEdge(ctx context.Context, ownerEmail, friendEmail string) (*friendship.Friendship, error) {
	f := &friendship.Friendship{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_email, friend_email, friend_uid, added_at FROM friends WHERE user_email = $1 AND friend_email = $2`,
		strings.ToLower(ownerEmail), friendEmail).Scan(&f.ID, &f.UserEmail, &f.FriendEmail, &f.FriendUID, &f.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up friend edge: %w", err)
	}
	return f, nil
}
