package services

import (
	"context"
	"math"
	"testing"
	"time"

	"codeGoalsAPI/internal/remote"
	"codeGoalsAPI/internal/types/target"
)

func TestCompletionDelta(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name        string
		deadline    *time.Time
		completedAt time.Time
		want        float64
	}{
		{"no deadline", nil, deadline, 0.02},
		{"well before deadline", &deadline, deadline.Add(-24 * time.Hour), 0.02},
		{"exactly at deadline", &deadline, deadline, 0.02},
		{"under a minute late", &deadline, deadline.Add(30 * time.Second), 0},
		{"ninety minutes late", &deadline, deadline.Add(90 * time.Minute), -0.90},
		{"a day late", &deadline, deadline.Add(24 * time.Hour), -14.40},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CompletionDelta(tc.deadline, tc.completedAt)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestClampDisplay(t *testing.T) {
	if got := ClampDisplay(-3.5); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := ClampDisplay(4.2); got != 4.2 {
		t.Fatalf("expected 4.2, got %v", got)
	}
	if got := ClampDisplay(11.7); got != 10 {
		t.Fatalf("expected 10, got %v", got)
	}
}

func TestOnTargetCompletedStartsFromDefault(t *testing.T) {
	ctx := context.Background()
	svc := NewRatingService(newTestDB(t), remote.NewMemoryStore())

	got, err := svc.OnTargetCompleted(ctx, testAccount, nil, time.Now().UTC())
	if err != nil {
		t.Fatalf("completion failed: %v", err)
	}
	if math.Abs(got-5.02) > 1e-9 {
		t.Fatalf("expected 5.02 for a fresh account, got %v", got)
	}

	persisted, err := svc.GetRating(ctx, testAccount.UID)
	if err != nil {
		t.Fatalf("get rating failed: %v", err)
	}
	if math.Abs(persisted-5.02) > 1e-9 {
		t.Fatalf("rating not persisted: got %v", persisted)
	}
}

func TestOnTargetCompletedClampsAtZero(t *testing.T) {
	ctx := context.Background()
	svc := NewRatingService(newTestDB(t), remote.NewMemoryStore())

	// Ten hours late: the raw delta of -6.0 would push the fresh rating of
	// 5.0 below zero.
	deadline := time.Now().UTC().Add(-10 * time.Hour)
	got, err := svc.OnTargetCompleted(ctx, testAccount, &deadline, time.Now().UTC())
	if err != nil {
		t.Fatalf("completion failed: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected clamp at 0, got %v", got)
	}

	persisted, err := svc.GetRating(ctx, testAccount.UID)
	if err != nil {
		t.Fatalf("get rating failed: %v", err)
	}
	if persisted != 0 {
		t.Fatalf("expected persisted 0, got %v", persisted)
	}
}

func TestOnTargetCompletedMirrorsToCloud(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemoryStore()
	svc := NewRatingService(newTestDB(t), store)

	got, err := svc.OnTargetCompleted(ctx, testAccount, nil, time.Now().UTC())
	if err != nil {
		t.Fatalf("completion failed: %v", err)
	}

	doc, err := store.GetUser(ctx, testAccount.UID)
	if err != nil {
		t.Fatalf("user doc not mirrored: %v", err)
	}
	if math.Abs(doc.Rating-got) > 1e-9 {
		t.Fatalf("mirrored rating %v, persisted %v", doc.Rating, got)
	}
	if doc.Email != testEmail {
		t.Fatalf("mirrored email %q", doc.Email)
	}

	p, err := store.GetPublicProfile(ctx, "alice_at_example_com")
	if err != nil {
		t.Fatalf("public profile not mirrored: %v", err)
	}
	if p.Rating == nil || math.Abs(*p.Rating-got) > 1e-9 {
		t.Fatalf("public profile rating %v", p.Rating)
	}
}

func TestPersonalRatingAccumulates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	targets := NewTargetService(db)
	svc := NewRatingService(db, remote.NewMemoryStore())

	first, err := targets.CreateTarget(ctx, testEmail, &target.CreateTargetRequest{
		Type: target.TypeTopic, Name: "DP",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := targets.CreateTarget(ctx, testEmail, &target.CreateTargetRequest{
		Type: target.TypeTopic, Name: "Greedy",
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Two new pending targets against a zero baseline.
	got, err := svc.PersonalRating(ctx, testEmail)
	if err != nil {
		t.Fatalf("personal rating failed: %v", err)
	}
	if math.Abs(got-4.9) > 1e-9 {
		t.Fatalf("expected 4.9, got %v", got)
	}

	if _, err := targets.SetStatus(ctx, testEmail, first.ID, target.StatusAchieved); err != nil {
		t.Fatalf("set status failed: %v", err)
	}

	// One more solve, pending count went down so no further penalty.
	got, err = svc.PersonalRating(ctx, testEmail)
	if err != nil {
		t.Fatalf("personal rating failed: %v", err)
	}
	if math.Abs(got-5.05) > 1e-9 {
		t.Fatalf("expected 5.05, got %v", got)
	}
}

func TestPersonalRatingIsPerAccount(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	targets := NewTargetService(db)
	svc := NewRatingService(db, remote.NewMemoryStore())

	if _, err := targets.CreateTarget(ctx, testEmail, &target.CreateTargetRequest{
		Type: target.TypeTopic, Name: "DP",
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	got, err := svc.PersonalRating(ctx, testEmail)
	if err != nil {
		t.Fatalf("personal rating failed: %v", err)
	}
	if math.Abs(got-4.95) > 1e-9 {
		t.Fatalf("expected 4.95, got %v", got)
	}

	// A second account sharing the store starts from the default: no
	// accumulator state leaks between accounts.
	got, err = svc.PersonalRating(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("personal rating for second account failed: %v", err)
	}
	if math.Abs(got-5.0) > 1e-9 {
		t.Fatalf("expected the default 5.0 for a fresh account, got %v", got)
	}

	// And the first account's state is untouched by the second read.
	got, err = svc.PersonalRating(ctx, testEmail)
	if err != nil {
		t.Fatalf("personal rating failed: %v", err)
	}
	if math.Abs(got-4.95) > 1e-9 {
		t.Fatalf("first account state changed: %v", got)
	}
}
