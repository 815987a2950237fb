package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeGoalsAPI/internal/remote"
	"codeGoalsAPI/internal/types/profile"
)

func seedProfile(t *testing.T, store *remote.MemoryStore, emailKey, uid, email string) {
	t.Helper()
	err := store.SetPublicProfile(context.Background(), emailKey, &profile.PublicProfile{
		UID:         uid,
		Email:       email,
		LastUpdated: time.Now().UTC(),
	})
	require.NoError(t, err)
}

func newChain(store *remote.MemoryStore, dir *stubDirectory) *Chain {
	var lookup AdminLookup
	if dir != nil {
		lookup = AdminLookup{Directory: dir}
	}
	return NewChain(
		CachedUID{},
		ProfileDoc{Store: store},
		AccountQuery{Store: store},
		lookup,
	)
}

type stubDirectory struct {
	uid string
	err error
}

func (d *stubDirectory) LookupUIDByEmail(_ context.Context, _ string) (string, error) {
	return d.uid, d.err
}

// failingStrategy stands in for a stage hitting a network fault.
type failingStrategy struct{}

func (failingStrategy) Name() string { return "failing" }

func (failingStrategy) Resolve(context.Context, string, string) (string, error) {
	return "", errors.New("store unreachable")
}

func TestChainPrefersCachedUID(t *testing.T) {
	store := remote.NewMemoryStore()
	seedProfile(t, store, "bob_at_example_com", "uid-from-profile", "bob@example.com")

	uid, stage, err := newChain(store, nil).Resolve(context.Background(), "bob@example.com", "uid-cached")
	require.NoError(t, err)
	assert.Equal(t, "uid-cached", uid)
	assert.Equal(t, "cached-uid", stage)
}

func TestChainResolvesViaProfileDoc(t *testing.T) {
	store := remote.NewMemoryStore()
	seedProfile(t, store, "bob_at_example_com", "uid-bob", "bob@example.com")

	uid, stage, err := newChain(store, nil).Resolve(context.Background(), "bob@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "uid-bob", uid)
	assert.Equal(t, "profile-doc", stage)
}

func TestChainFallsThroughDeniedProfile(t *testing.T) {
	store := remote.NewMemoryStore()
	store.DenyProfileReads = true
	err := store.SetUserFields(context.Background(), "uid-bob", map[string]any{"email": "bob@example.com"})
	require.NoError(t, err)

	// A denied read is "no answer here", not a failure.
	uid, stage, err := newChain(store, nil).Resolve(context.Background(), "bob@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "uid-bob", uid)
	assert.Equal(t, "account-query", stage)
}

func TestChainFallsThroughToAdminLookup(t *testing.T) {
	store := remote.NewMemoryStore()
	store.DenyProfileReads = true
	store.DenyUserQueries = true

	uid, stage, err := newChain(store, &stubDirectory{uid: "uid-admin"}).Resolve(context.Background(), "bob@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "uid-admin", uid)
	assert.Equal(t, "admin-lookup", stage)
}

func TestChainNotFound(t *testing.T) {
	store := remote.NewMemoryStore()

	_, _, err := newChain(store, nil).Resolve(context.Background(), "ghost@example.com", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChainAdminErrorIsNoAnswer(t *testing.T) {
	store := remote.NewMemoryStore()
	dir := &stubDirectory{err: errors.New("user not found")}

	// The admin SDK reports unknown accounts as errors; the chain must land
	// on not-found rather than transient.
	_, _, err := newChain(store, dir).Resolve(context.Background(), "ghost@example.com", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChainTransientFailure(t *testing.T) {
	chain := NewChain(CachedUID{}, failingStrategy{})

	_, _, err := chain.Resolve(context.Background(), "bob@example.com", "")
	assert.ErrorIs(t, err, ErrTransient)
}

func TestChainRecoversAfterTransientStage(t *testing.T) {
	store := remote.NewMemoryStore()
	err := store.SetUserFields(context.Background(), "uid-bob", map[string]any{"email": "bob@example.com"})
	require.NoError(t, err)

	// A later stage answering outranks an earlier stage failing.
	chain := NewChain(failingStrategy{}, AccountQuery{Store: store})
	uid, stage, err := chain.Resolve(context.Background(), "bob@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "uid-bob", uid)
	assert.Equal(t, "account-query", stage)
}
