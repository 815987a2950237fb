package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"codeGoalsAPI/internal/auth"
	"codeGoalsAPI/internal/contentaddr"
	"codeGoalsAPI/internal/remote"
	"codeGoalsAPI/internal/types/profile"
	"codeGoalsAPI/internal/types/target"
)

// SyncPhase names one step of the full-sync sequence.
type SyncPhase string

const (
	PhaseIdle        SyncPhase = "idle"
	PhasePushTargets SyncPhase = "push_targets"
	PhasePullTargets SyncPhase = "pull_targets"
	PhasePushHistory SyncPhase = "push_history"
	PhasePullHistory SyncPhase = "pull_history"
)

// SyncReport summarizes one full-sync invocation.
type SyncReport struct {
	Pushed        int       `json:"pushed"`
	PushFailures  int       `json:"push_failures"`
	PulledNew     int       `json:"pulled_new"`
	PulledUpdated int       `json:"pulled_updated"`
	HistoryPushed int       `json:"history_pushed"`
	HistoryNew    int       `json:"history_new"`
	CompletedAt   time.Time `json:"completed_at"`
}

// PhaseObserver is notified after each phase completes; wired to metrics by
// the composition root.
type PhaseObserver func(phase SyncPhase, err error)

// SyncService drives the push/pull reconciliation between the local store
// and the cloud document store. Phases run strictly in order for one
// account; a failed phase leaves the later ones unexecuted, which is safe
// because no phase is destructive and all writes are idempotent.
type SyncService struct {
	targets     *TargetService
	store       remote.Store
	pushHistory bool
	observe     PhaseObserver
}

func NewSyncService(targets *TargetService, store remote.Store, pushHistory bool) *SyncService {
	return &SyncService{
		targets:     targets,
		store:       store,
		pushHistory: pushHistory,
		observe:     func(SyncPhase, error) {},
	}
}

// SetPhaseObserver installs a metrics hook. Call before first sync.
func (s *SyncService) SetPhaseObserver(obs PhaseObserver) {
	if obs != nil {
		s.observe = obs
	}
}

// FullSync runs PushTargets -> PullTargets -> PushHistory (when enabled) ->
// PullHistory for the provider's account. It aborts up front with
// ErrNotAuthenticated when no account is signed in.
func (s *SyncService) FullSync(ctx context.Context, provider auth.AccountProvider) (*SyncReport, error) {
	uid, err := provider.CurrentAccountID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	email, err := provider.CurrentAccountEmail()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}

	s.ensureProfile(ctx, uid, email)

	report := &SyncReport{}
	phases := []SyncPhase{PhasePushTargets, PhasePullTargets}
	if s.pushHistory {
		phases = append(phases, PhasePushHistory)
	}
	phases = append(phases, PhasePullHistory)

	for _, phase := range phases {
		var phaseErr error
		switch phase {
		case PhasePushTargets:
			phaseErr = s.runPushTargets(ctx, uid, email, report)
		case PhasePullTargets:
			phaseErr = s.runPullTargets(ctx, uid, email, report)
		case PhasePushHistory:
			phaseErr = s.runPushHistory(ctx, uid, email, report)
		case PhasePullHistory:
			phaseErr = s.runPullHistory(ctx, uid, email, report)
		}
		s.observe(phase, phaseErr)
		if phaseErr != nil {
			// Later phases stay unexecuted; the next trigger retries the
			// whole sequence.
			return report, fmt.Errorf("sync phase %s: %w", phase, phaseErr)
		}
	}

	report.CompletedAt = time.Now().UTC()
	return report, nil
}

// ensureProfile bootstraps users/{uid} and userProfiles/{emailKey} so
// friends can resolve this account. Best effort; sync proceeds regardless.
func (s *SyncService) ensureProfile(ctx context.Context, uid, email string) {
	if err := s.store.SetUserFields(ctx, uid, map[string]any{"email": email}); err != nil {
		log.Printf("SyncService: could not bootstrap user doc for %s: %v", uid, err)
	}
	p := &profile.PublicProfile{UID: uid, Email: email, LastUpdated: time.Now().UTC()}
	if err := s.store.SetPublicProfile(ctx, profile.EmailKey(email), p); err != nil {
		log.Printf("SyncService: could not bootstrap public profile for %s: %v", email, err)
	}
}

// runPushTargets merge-writes every local active target to its content
// address. It never deletes a remote document: a record present remotely but
// absent locally belongs to another device that this one has not pulled yet.
func (s *SyncService) runPushTargets(ctx context.Context, uid, email string, report *SyncReport) error {
	locals, err := s.targets.ListActive(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to read local targets: %w", err)
	}

	// Listing is only an optimization: with remote content in hand,
	// unchanged documents can be skipped. When the listing fails the push
	// degrades to pushing everything uncompared.
	remoteDocs, err := s.store.ListTargets(ctx, uid)
	if err != nil {
		log.Printf("SyncService: listing targets failed (%v), pushing without comparison", err)
		remoteDocs = nil
	}

	for _, local := range locals {
		docID := contentaddr.DocID(local.ProblemLink, local.ID)
		doc := projectTarget(local)

		if existing, ok := remoteDocs[docID]; ok {
			if targetDocEqual(existing, doc) {
				continue
			}
			// The remote document belongs to a newer instance of this
			// target, re-created on another device after this row was
			// made. The pull pass absorbs it; pushing would revive the
			// old instance.
			if existing.CreatedAt.After(doc.CreatedAt) {
				continue
			}
			// Push runs before pull. A pending row must not clobber a
			// terminal status another device already recorded; the pull
			// pass absorbs the progress and the next sync pushes it back.
			// A pending row created after the remote document is exempt:
			// that is a target archived and tracked again, not a stale
			// device, and its fresh status must reach the store.
			if statusRegression(existing, doc) && !doc.CreatedAt.After(existing.CreatedAt) {
				continue
			}
		}

		if err := s.store.UpsertTarget(ctx, uid, docID, doc); err != nil {
			// A single record failure never aborts the batch.
			log.Printf("SyncService: failed to push target %d (%s): %v", local.ID, docID, err)
			report.PushFailures++
			continue
		}
		report.Pushed++
	}
	return nil
}

// runPullTargets folds every remote target document into the local store.
// Content-addressable documents match local rows by problem link (archived
// rows included) and update them in place; everything else is inserted as a
// new local row through the same duplicate guard as a user insert.
func (s *SyncService) runPullTargets(ctx context.Context, uid, email string, report *SyncReport) error {
	remoteDocs, err := s.store.ListTargets(ctx, uid)
	if err != nil {
		return fmt.Errorf("failed to list remote targets: %w", err)
	}

	for docID, doc := range remoteDocs {
		if doc.ProblemLink != "" {
			if err := s.absorbLinked(ctx, email, doc, report); err != nil {
				log.Printf("SyncService: failed to absorb remote target %s: %v", docID, err)
			}
			continue
		}
		if err := s.absorbLinkless(ctx, email, docID, doc, report); err != nil {
			log.Printf("SyncService: failed to absorb remote target %s: %v", docID, err)
		}
	}
	return nil
}

func (s *SyncService) absorbLinked(ctx context.Context, email string, doc *remote.TargetDoc, report *SyncReport) error {
	local, err := s.targets.FindByLink(ctx, email, doc.ProblemLink)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	if local == nil {
		t := reconstructTarget(doc, email)
		if _, err := s.targets.insert(ctx, t); err != nil {
			return err
		}
		report.PulledNew++
		return nil
	}

	// A document created after the local row is a newer instance of the
	// same problem: the target was archived and tracked again elsewhere.
	if doc.CreatedAt.After(local.CreatedAt) {
		if local.Deleted && !doc.Archived {
			// This device archived its copy. Keep the history row and
			// bring in the new instance alongside it.
			t := reconstructTarget(doc, email)
			if _, err := s.targets.insert(ctx, t); err != nil {
				return err
			}
			report.PulledNew++
			return nil
		}
		// An active row from the old instance is superseded wholesale,
		// status included.
		t := reconstructTarget(doc, email)
		t.ID = local.ID
		if err := s.targets.UpdateTarget(ctx, t); err != nil {
			return err
		}
		report.PulledUpdated++
		return nil
	}

	changed := mergeRemoteInto(local, doc)
	if !changed {
		return nil
	}
	if err := s.targets.UpdateTarget(ctx, local); err != nil {
		return err
	}
	report.PulledUpdated++
	return nil
}

// absorbLinkless handles topic targets, which are keyed by the pushing
// device's local row id and do not converge by content. The row this device
// pushed comes back under its own id; anything else matches by name before
// a new row is inserted.
func (s *SyncService) absorbLinkless(ctx context.Context, email, docID string, doc *remote.TargetDoc, report *SyncReport) error {
	if id, err := strconv.ParseInt(docID, 10, 64); err == nil {
		if local, err := s.targets.GetTarget(ctx, email, id); err == nil && local.ProblemLink == "" && local.Name == doc.Name {
			changed := mergeRemoteInto(local, doc)
			if changed {
				if err := s.targets.UpdateTarget(ctx, local); err != nil {
					return err
				}
				report.PulledUpdated++
			}
			return nil
		}
	}

	actives, err := s.targets.ListActive(ctx, email)
	if err != nil {
		return err
	}
	for _, local := range actives {
		if local.ProblemLink == "" && local.Name == doc.Name && string(local.Type) == doc.Type {
			return nil
		}
	}

	t := reconstructTarget(doc, email)
	if _, err := s.targets.insert(ctx, t); err != nil {
		return err
	}
	report.PulledNew++
	return nil
}

// runPushHistory mirrors achieved+archived targets into the history
// collection. Desktop-only in the original deployment; controlled by config
// here.
func (s *SyncService) runPushHistory(ctx context.Context, uid, email string, report *SyncReport) error {
	archived, err := s.targets.ListArchivedAchieved(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to read local history: %w", err)
	}

	for _, t := range archived {
		docID := contentaddr.DocID(t.ProblemLink, t.ID)
		doc := &remote.HistoryDoc{
			ID:          docID,
			ProblemLink: t.ProblemLink,
			Name:        t.Name,
			Rating:      t.Rating,
		}
		if err := s.store.UpsertHistory(ctx, uid, docID, doc); err != nil {
			log.Printf("SyncService: failed to push history %d (%s): %v", t.ID, docID, err)
			report.PushFailures++
			continue
		}
		report.HistoryPushed++
	}
	return nil
}

// runPullHistory imports remote history items that have no local counterpart
// as archived achieved targets. Items that exist locally in any state are
// left untouched: local state wins over remote history, so a target the
// user deleted here is never resurrected by another device's archive.
func (s *SyncService) runPullHistory(ctx context.Context, uid, email string, report *SyncReport) error {
	remoteDocs, err := s.store.ListHistory(ctx, uid)
	if err != nil {
		return fmt.Errorf("failed to list remote history: %w", err)
	}

	for docID, doc := range remoteDocs {
		if doc.ProblemLink == "" {
			continue
		}

		local, err := s.targets.FindByLink(ctx, email, doc.ProblemLink)
		if err != nil && !errors.Is(err, ErrNotFound) {
			log.Printf("SyncService: failed history lookup for %s: %v", docID, err)
			continue
		}
		if local != nil {
			continue
		}

		t := &target.Target{
			Type:        target.TypeProblem,
			Name:        doc.Name,
			ProblemLink: doc.ProblemLink,
			Status:      target.StatusAchieved,
			Rating:      doc.Rating,
			Deleted:     true,
			CreatedAt:   time.Now().UTC(),
			UserEmail:   email,
		}
		if _, err := s.targets.insert(ctx, t); err != nil {
			log.Printf("SyncService: failed to import history %s: %v", docID, err)
			continue
		}
		report.HistoryNew++
	}
	return nil
}

// projectTarget builds the cloud projection of a local row. The local id is
// deliberately absent.
func projectTarget(t *target.Target) *remote.TargetDoc {
	return &remote.TargetDoc{
		Type:        string(t.Type),
		Name:        t.Name,
		ProblemLink: t.ProblemLink,
		TopicName:   t.TopicName,
		WebsiteURL:  t.WebsiteURL,
		Status:      string(t.Status),
		Rating:      t.Rating,
		CreatedAt:   t.CreatedAt,
		Deadline:    t.Deadline,
		Archived:    t.Deleted,
	}
}

func reconstructTarget(doc *remote.TargetDoc, email string) *target.Target {
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &target.Target{
		Type:        target.TargetType(doc.Type),
		Name:        doc.Name,
		ProblemLink: doc.ProblemLink,
		TopicName:   doc.TopicName,
		WebsiteURL:  doc.WebsiteURL,
		Status:      target.TargetStatus(doc.Status),
		Rating:      doc.Rating,
		Deleted:     doc.Archived,
		CreatedAt:   createdAt,
		Deadline:    doc.Deadline,
		UserEmail:   email,
	}
}

// mergeRemoteInto folds a remote document into an existing local row,
// preserving the local id and creation time. Reports whether anything
// changed.
func mergeRemoteInto(local *target.Target, doc *remote.TargetDoc) bool {
	changed := false

	if doc.Name != "" && doc.Name != local.Name {
		local.Name = doc.Name
		changed = true
	}
	if doc.TopicName != local.TopicName {
		local.TopicName = doc.TopicName
		changed = true
	}
	if doc.WebsiteURL != local.WebsiteURL {
		local.WebsiteURL = doc.WebsiteURL
		changed = true
	}
	if doc.Rating != nil && (local.Rating == nil || *local.Rating != *doc.Rating) {
		r := *doc.Rating
		local.Rating = &r
		changed = true
	}
	if doc.Deadline != nil && (local.Deadline == nil || !local.Deadline.Equal(*doc.Deadline)) {
		d := *doc.Deadline
		local.Deadline = &d
		changed = true
	}

	// Progress propagates, regressions do not: a remote terminal status
	// overwrites a local pending one, never the other way around.
	remoteStatus := target.TargetStatus(doc.Status)
	if remoteStatus != local.Status && local.Status == target.StatusPending &&
		(remoteStatus == target.StatusAchieved || remoteStatus == target.StatusFailed) {
		local.Status = remoteStatus
		changed = true
	}

	// Archival propagates only onto achieved rows; an active local row is
	// never silently removed from the user's list, and a locally archived
	// row is never resurrected.
	if doc.Archived && !local.Deleted && local.Status == target.StatusAchieved {
		local.Deleted = true
		changed = true
	}

	return changed
}

// statusRegression reports whether writing doc over existing would move a
// terminal status back to pending.
func statusRegression(existing, doc *remote.TargetDoc) bool {
	if target.TargetStatus(doc.Status) != target.StatusPending {
		return false
	}
	s := target.TargetStatus(existing.Status)
	return s == target.StatusAchieved || s == target.StatusFailed
}

func targetDocEqual(a, b *remote.TargetDoc) bool {
	if a.Type != b.Type || a.Name != b.Name || a.ProblemLink != b.ProblemLink ||
		a.TopicName != b.TopicName || a.WebsiteURL != b.WebsiteURL ||
		a.Status != b.Status || a.Archived != b.Archived {
		return false
	}
	if (a.Rating == nil) != (b.Rating == nil) || (a.Rating != nil && *a.Rating != *b.Rating) {
		return false
	}
	if (a.Deadline == nil) != (b.Deadline == nil) || (a.Deadline != nil && !a.Deadline.Equal(*b.Deadline)) {
		return false
	}
	return true
}
