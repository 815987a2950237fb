package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"codeGoalsAPI/internal/localdb"
	"codeGoalsAPI/internal/types/target"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := localdb.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

const testEmail = "alice@example.com"

func TestCreateTargetDuplicateLink(t *testing.T) {
	svc := NewTargetService(newTestDB(t))
	ctx := context.Background()

	req := &target.CreateTargetRequest{
		Type:        target.TypeProblem,
		Name:        "Watermelon",
		ProblemLink: "https://codeforces.com/problemset/problem/4/A",
	}
	if _, err := svc.CreateTarget(ctx, testEmail, req); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	_, err := svc.CreateTarget(ctx, testEmail, req)
	if !errors.Is(err, ErrDuplicateTarget) {
		t.Fatalf("expected ErrDuplicateTarget, got %v", err)
	}

	// A different account is free to track the same problem.
	if _, err := svc.CreateTarget(ctx, "bob@example.com", req); err != nil {
		t.Fatalf("create for second account failed: %v", err)
	}
}

func TestCreateTargetAfterArchiveAllowed(t *testing.T) {
	svc := NewTargetService(newTestDB(t))
	ctx := context.Background()

	req := &target.CreateTargetRequest{
		Type:        target.TypeProblem,
		Name:        "Theatre Square",
		ProblemLink: "https://codeforces.com/problemset/problem/1/A",
	}
	created, err := svc.CreateTarget(ctx, testEmail, req)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.SetStatus(ctx, testEmail, created.ID, target.StatusAchieved); err != nil {
		t.Fatalf("set status failed: %v", err)
	}
	if err := svc.Archive(ctx, testEmail, created.ID); err != nil {
		t.Fatalf("archive failed: %v", err)
	}

	// The guard only counts active rows, so the problem can be tracked again.
	if _, err := svc.CreateTarget(ctx, testEmail, req); err != nil {
		t.Fatalf("re-create after archive failed: %v", err)
	}
}

func TestCreateTargetValidation(t *testing.T) {
	svc := NewTargetService(newTestDB(t))
	ctx := context.Background()

	if _, err := svc.CreateTarget(ctx, "", &target.CreateTargetRequest{Type: target.TypeTopic, Name: "DP"}); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated for empty owner, got %v", err)
	}
	if _, err := svc.CreateTarget(ctx, testEmail, &target.CreateTargetRequest{Type: target.TypeTopic, Name: "   "}); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput for blank name, got %v", err)
	}
}

func TestSetStatusTerminalIsSticky(t *testing.T) {
	svc := NewTargetService(newTestDB(t))
	ctx := context.Background()

	created, err := svc.CreateTarget(ctx, testEmail, &target.CreateTargetRequest{
		Type: target.TypeTopic,
		Name: "Segment trees",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	achieved, err := svc.SetStatus(ctx, testEmail, created.ID, target.StatusAchieved)
	if err != nil {
		t.Fatalf("set achieved failed: %v", err)
	}
	if achieved.Status != target.StatusAchieved {
		t.Fatalf("expected achieved, got %s", achieved.Status)
	}

	// A second transition attempt keeps the existing terminal status.
	after, err := svc.SetStatus(ctx, testEmail, created.ID, target.StatusFailed)
	if err != nil {
		t.Fatalf("second set status failed: %v", err)
	}
	if after.Status != target.StatusAchieved {
		t.Fatalf("terminal status was overwritten: got %s", after.Status)
	}
}

func TestArchiveLeavesHistoryRow(t *testing.T) {
	svc := NewTargetService(newTestDB(t))
	ctx := context.Background()

	link := "https://codeforces.com/contest/1851/problem/E"
	created, err := svc.CreateTarget(ctx, testEmail, &target.CreateTargetRequest{
		Type:        target.TypeProblem,
		Name:        "Permutation Sorting",
		ProblemLink: link,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.SetStatus(ctx, testEmail, created.ID, target.StatusAchieved); err != nil {
		t.Fatalf("set status failed: %v", err)
	}
	if err := svc.Archive(ctx, testEmail, created.ID); err != nil {
		t.Fatalf("archive failed: %v", err)
	}

	active, err := svc.ListActive(ctx, testEmail)
	if err != nil {
		t.Fatalf("list active failed: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("archived target still listed as active")
	}

	// The row survives for the history pass and for the content match.
	archived, err := svc.ListArchivedAchieved(ctx, testEmail)
	if err != nil {
		t.Fatalf("list archived failed: %v", err)
	}
	if len(archived) != 1 {
		t.Fatalf("expected 1 archived achieved target, got %d", len(archived))
	}
	found, err := svc.FindByLink(ctx, testEmail, link)
	if err != nil {
		t.Fatalf("find by link failed: %v", err)
	}
	if !found.Deleted {
		t.Fatalf("expected archived row from FindByLink")
	}
}

func TestUpdateTargetRewritesRow(t *testing.T) {
	svc := NewTargetService(newTestDB(t))
	ctx := context.Background()

	created, err := svc.CreateTarget(ctx, testEmail, &target.CreateTargetRequest{
		Type:        target.TypeProblem,
		Name:        "Watermelon",
		ProblemLink: "https://codeforces.com/problemset/problem/4/A",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	rating := 800
	created.Name = "Watermelon (div 2)"
	created.Status = target.StatusAchieved
	created.Rating = &rating
	if err := svc.UpdateTarget(ctx, created); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, err := svc.GetTarget(ctx, testEmail, created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Name != "Watermelon (div 2)" || got.Status != target.StatusAchieved {
		t.Fatalf("update did not land: name=%q status=%s", got.Name, got.Status)
	}
	if got.Rating == nil || *got.Rating != rating {
		t.Fatalf("rating did not land: %v", got.Rating)
	}
	if got.ProblemLink != created.ProblemLink {
		t.Fatalf("problem link corrupted: %q", got.ProblemLink)
	}

	// The owner predicate must hold: no row of another account is touched.
	created.UserEmail = "bob@example.com"
	if err := svc.UpdateTarget(ctx, created); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign owner, got %v", err)
	}
}

func TestFindByLinkPrefersActiveRow(t *testing.T) {
	svc := NewTargetService(newTestDB(t))
	ctx := context.Background()

	link := "https://codeforces.com/problemset/problem/4/A"
	req := &target.CreateTargetRequest{
		Type:        target.TypeProblem,
		Name:        "Watermelon",
		ProblemLink: link,
	}
	first, err := svc.CreateTarget(ctx, testEmail, req)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.SetStatus(ctx, testEmail, first.ID, target.StatusAchieved); err != nil {
		t.Fatalf("set status failed: %v", err)
	}
	if err := svc.Archive(ctx, testEmail, first.ID); err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	second, err := svc.CreateTarget(ctx, testEmail, req)
	if err != nil {
		t.Fatalf("re-create failed: %v", err)
	}

	found, err := svc.FindByLink(ctx, testEmail, link)
	if err != nil {
		t.Fatalf("find by link failed: %v", err)
	}
	if found.ID != second.ID || found.Deleted {
		t.Fatalf("expected the active row to shadow the archived one, got id=%d deleted=%v", found.ID, found.Deleted)
	}
}

func TestArchiveUnknownTarget(t *testing.T) {
	svc := NewTargetService(newTestDB(t))
	if err := svc.Archive(context.Background(), testEmail, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
