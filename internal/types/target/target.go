package target

import (
	"strings"
	"time"
)

type TargetType string

const (
	TypeProblem TargetType = "problem"
	TypeTopic   TargetType = "topic"
)

type TargetStatus string

const (
	StatusPending  TargetStatus = "pending"
	StatusAchieved TargetStatus = "achieved"
	StatusFailed   TargetStatus = "failed"
)

// Target is a tracked goal: either a concrete problem (identified by its
// link) or a study topic. The integer ID is assigned by the local store and
// never leaves the device; cross-device identity is the content address of
// ProblemLink.
type Target struct {
	ID          int64        `json:"id" db:"id"`
	Type        TargetType   `json:"type" db:"type"`
	Name        string       `json:"name" db:"name"`
	ProblemLink string       `json:"problem_link" db:"problem_link"`
	TopicName   string       `json:"topic_name" db:"topic_name"`
	WebsiteURL  string       `json:"website_url" db:"website_url"`
	Status      TargetStatus `json:"status" db:"status"`
	Rating      *int         `json:"rating,omitempty" db:"rating"`
	Deleted     bool         `json:"deleted" db:"deleted"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	Deadline    *time.Time   `json:"deadline,omitempty" db:"deadline"`
	UserEmail   string       `json:"user_email" db:"user_email"`
}

// Active reports whether the target counts toward the user's open goal list.
func (t *Target) Active() bool {
	return !t.Deleted
}

// Terminal reports whether the target reached a final status.
func (t *Target) Terminal() bool {
	return t.Status == StatusAchieved || t.Status == StatusFailed
}

type CreateTargetRequest struct {
	Type        TargetType `json:"type" validate:"required,oneof=problem topic"`
	Name        string     `json:"name" validate:"required"`
	ProblemLink string     `json:"problem_link" validate:"omitempty,url"`
	TopicName   string     `json:"topic_name"`
	WebsiteURL  string     `json:"website_url" validate:"omitempty,url"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

type UpdateStatusRequest struct {
	Status TargetStatus `json:"status" validate:"required,oneof=achieved failed"`
}

// NormalizeEmail lower-cases and trims an account email. Every owner-scoped
// query goes through this so the same account matches across devices.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
