package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"codeGoalsAPI/internal/types/target"
)

// TargetService owns the local store's target rows. It is the only writer
// of local row ids; everything else refers to targets through it.
type TargetService struct {
	db *sql.DB
}

func NewTargetService(db *sql.DB) *TargetService {
	return &TargetService{db: db}
}

const targetColumns = "id, type, name, problem_link, topic_name, website_url, status, rating, deleted, created_at, deadline, user_email"

func scanTarget(row interface{ Scan(...any) error }) (*target.Target, error) {
	t := &target.Target{}
	err := row.Scan(
		&t.ID,
		&t.Type,
		&t.Name,
		&t.ProblemLink,
		&t.TopicName,
		&t.WebsiteURL,
		&t.Status,
		&t.Rating,
		&t.Deleted,
		&t.CreatedAt,
		&t.Deadline,
		&t.UserEmail,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateTarget inserts a new target for the owner. Problem targets are
// guarded against duplicates: at most one active row may exist per distinct
// problem link within one account.
func (s *TargetService) CreateTarget(ctx context.Context, ownerEmail string, req *target.CreateTargetRequest) (*target.Target, error) {
	ownerEmail = target.NormalizeEmail(ownerEmail)
	if ownerEmail == "" {
		return nil, ErrNotAuthenticated
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrEmptyInput
	}

	link := strings.TrimSpace(req.ProblemLink)
	if link != "" {
		existing, err := s.FindByLink(ctx, ownerEmail, link)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if existing != nil && existing.Active() {
			return nil, ErrDuplicateTarget
		}
	}

	t := &target.Target{
		Type:        req.Type,
		Name:        strings.TrimSpace(req.Name),
		ProblemLink: link,
		TopicName:   strings.TrimSpace(req.TopicName),
		WebsiteURL:  strings.TrimSpace(req.WebsiteURL),
		Status:      target.StatusPending,
		CreatedAt:   time.Now().UTC(),
		Deadline:    req.Deadline,
		UserEmail:   ownerEmail,
	}

	return s.insert(ctx, t)
}

func (s *TargetService) insert(ctx context.Context, t *target.Target) (*target.Target, error) {
	query := `
	INSERT INTO targets (type, name, problem_link, topic_name, website_url, status, rating, deleted, created_at, deadline, user_email)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING id
	`

	err := s.db.QueryRowContext(
		ctx,
		query,
		t.Type,
		t.Name,
		t.ProblemLink,
		t.TopicName,
		t.WebsiteURL,
		t.Status,
		t.Rating,
		t.Deleted,
		t.CreatedAt,
		t.Deadline,
		t.UserEmail,
	).Scan(&t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert target: %w", err)
	}

	return t, nil
}

// GetTarget returns one target by local id, owner-scoped.
func (s *TargetService) GetTarget(ctx context.Context, ownerEmail string, id int64) (*target.Target, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+targetColumns+` FROM targets WHERE id = $1 AND user_email = $2`,
		id, target.NormalizeEmail(ownerEmail))

	t, err := scanTarget(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get target: %w", err)
	}
	return t, nil
}

// FindByLink looks up a target by its problem link. Active rows win over
// archived ones so a re-created target shadows the instance it replaced.
// This is the content match the pull pass relies on.
func (s *TargetService) FindByLink(ctx context.Context, ownerEmail, problemLink string) (*target.Target, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+targetColumns+` FROM targets WHERE user_email = $1 AND problem_link = $2 ORDER BY deleted, id LIMIT 1`,
		target.NormalizeEmail(ownerEmail), strings.TrimSpace(problemLink))

	t, err := scanTarget(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find target by link: %w", err)
	}
	return t, nil
}

// ListActive returns all non-archived targets for the owner.
func (s *TargetService) ListActive(ctx context.Context, ownerEmail string) ([]*target.Target, error) {
	return s.list(ctx, ownerEmail, `deleted = FALSE`)
}

// ListArchivedAchieved returns the history set: achieved targets that were
// soft-deleted but retained.
func (s *TargetService) ListArchivedAchieved(ctx context.Context, ownerEmail string) ([]*target.Target, error) {
	return s.list(ctx, ownerEmail, `deleted = TRUE AND status = 'achieved'`)
}

func (s *TargetService) list(ctx context.Context, ownerEmail, predicate string) ([]*target.Target, error) {
	query := `SELECT ` + targetColumns + ` FROM targets WHERE user_email = $1 AND ` + predicate + ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, target.NormalizeEmail(ownerEmail))
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var out []*target.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTarget rewrites the fields of an existing row in place, preserving
// id and owner. Placeholders must stay in appearance order: the sqlite
// driver binds positional args by first occurrence, not by number.
func (s *TargetService) UpdateTarget(ctx context.Context, t *target.Target) error {
	query := `
	UPDATE targets
	SET type = $1, name = $2, problem_link = $3, topic_name = $4, website_url = $5,
	    status = $6, rating = $7, deleted = $8, created_at = $9, deadline = $10
	WHERE id = $11 AND user_email = $12
	`

	res, err := s.db.ExecContext(ctx, query,
		t.Type, t.Name, t.ProblemLink, t.TopicName, t.WebsiteURL,
		t.Status, t.Rating, t.Deleted, t.CreatedAt, t.Deadline, t.ID, t.UserEmail)
	if err != nil {
		return fmt.Errorf("failed to update target: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus moves a pending target to a terminal status.
func (s *TargetService) SetStatus(ctx context.Context, ownerEmail string, id int64, status target.TargetStatus) (*target.Target, error) {
	t, err := s.GetTarget(ctx, ownerEmail, id)
	if err != nil {
		return nil, err
	}
	if t.Terminal() {
		log.Printf("TargetService: target %d already %s, keeping terminal status", id, t.Status)
		return t, nil
	}

	t.Status = status
	if err := s.UpdateTarget(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Archive soft-deletes a target. The row stays for history; it just leaves
// the active list.
func (s *TargetService) Archive(ctx context.Context, ownerEmail string, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE targets SET deleted = TRUE WHERE id = $1 AND user_email = $2`,
		id, target.NormalizeEmail(ownerEmail))
	if err != nil {
		return fmt.Errorf("failed to archive target: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus returns how many targets the owner has in a given status,
// archived rows included.
func (s *TargetService) CountByStatus(ctx context.Context, ownerEmail string, status target.TargetStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM targets WHERE user_email = $1 AND status = $2`,
		target.NormalizeEmail(ownerEmail), status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count targets: %w", err)
	}
	return n, nil
}
