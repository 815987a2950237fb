// Package resolver discovers the cloud account id behind a friend's email.
//
// Resolution is an ordered list of strategies, each tried only when the
// previous one yielded nothing. Permission-denied reads count as "nothing",
// not as failures; only when every stage comes up empty is the result a
// definitive not-found, kept distinct from transient store errors.
package resolver

import (
	"context"
	"errors"
	"log"

	"codeGoalsAPI/internal/auth"
	"codeGoalsAPI/internal/remote"
	"codeGoalsAPI/internal/types/profile"
)

var (
	// ErrNotFound means every stage was tried and none knows the account.
	ErrNotFound = errors.New("resolver: account not found")
	// ErrTransient means at least one stage failed for reasons that may
	// clear up on retry, so not-found cannot be concluded.
	ErrTransient = errors.New("resolver: transient lookup failure")
)

// Strategy is one resolution stage. It returns the uid, or empty string
// when this stage has no answer. A non-nil error marks a transient failure;
// "definitively unknown here" is ("", nil).
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, friendEmail, cachedUID string) (string, error)
}

// Chain runs strategies in order with short-circuit evaluation.
type Chain struct {
	strategies []Strategy
}

func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// Resolve returns the first uid any stage yields, together with the name of
// the stage that produced it.
func (c *Chain) Resolve(ctx context.Context, friendEmail, cachedUID string) (string, string, error) {
	transient := false

	for _, s := range c.strategies {
		uid, err := s.Resolve(ctx, friendEmail, cachedUID)
		if err != nil {
			log.Printf("resolver: stage %s failed for %s: %v", s.Name(), friendEmail, err)
			transient = true
			continue
		}
		if uid != "" {
			return uid, s.Name(), nil
		}
	}

	if transient {
		return "", "", ErrTransient
	}
	return "", "", ErrNotFound
}

// CachedUID returns the uid previously written back onto the friend edge.
type CachedUID struct{}

func (CachedUID) Name() string { return "cached-uid" }

func (CachedUID) Resolve(_ context.Context, _, cachedUID string) (string, error) {
	return cachedUID, nil
}

// ProfileDoc reads the public profile document keyed by the sanitized email.
type ProfileDoc struct {
	Store remote.Store
}

func (ProfileDoc) Name() string { return "profile-doc" }

func (s ProfileDoc) Resolve(ctx context.Context, friendEmail, _ string) (string, error) {
	p, err := s.Store.GetPublicProfile(ctx, profile.EmailKey(friendEmail))
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) || errors.Is(err, remote.ErrPermissionDenied) {
			return "", nil
		}
		return "", err
	}
	return p.UID, nil
}

// AccountQuery filters the account collection by email. Access rules often
// reject this for non-admin callers; that rejection is "not found", not an
// error.
type AccountQuery struct {
	Store remote.Store
}

func (AccountQuery) Name() string { return "account-query" }

func (s AccountQuery) Resolve(ctx context.Context, friendEmail, _ string) (string, error) {
	uid, err := s.Store.QueryUIDByEmail(ctx, friendEmail)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) || errors.Is(err, remote.ErrPermissionDenied) {
			return "", nil
		}
		return "", err
	}
	return uid, nil
}

// AdminLookup asks the auth provider's administrative directory. Only wired
// where such a directory exists (the hosted server); a nil Directory stage
// resolves nothing.
type AdminLookup struct {
	Directory auth.Directory
}

func (AdminLookup) Name() string { return "admin-lookup" }

func (s AdminLookup) Resolve(ctx context.Context, friendEmail, _ string) (string, error) {
	if s.Directory == nil {
		return "", nil
	}
	uid, err := s.Directory.LookupUIDByEmail(ctx, friendEmail)
	if err != nil {
		// The admin SDK folds unknown-account into an error; treat any
		// failure here as this stage having no answer.
		return "", nil
	}
	return uid, nil
}
