// Package remote is the client facade over the cloud document store.
//
// Collections per authenticated account (opaque id uid):
//
//	users/{uid}                      account document, public rating mirror
//	users/{uid}/targets/{docId}      active target projection, docId = content address
//	users/{uid}/history/{docId}      achieved+archived targets
//	users/{uid}/dailyActivity/{date} practice volume per day
//	users/{uid}/friends/{email}      directed friend edges
//	userProfiles/{emailKey}          email-addressable account pointer
//
// The store promises per-document merge writes and eventual visibility,
// nothing transactional across documents. The sync protocol is built on
// exactly that.
package remote

import (
	"context"
	"errors"
	"time"

	"codeGoalsAPI/internal/types/activity"
	"codeGoalsAPI/internal/types/profile"
)

var (
	// ErrNotFound means the document does not exist.
	ErrNotFound = errors.New("remote: document not found")
	// ErrPermissionDenied means the store's access rules rejected the read.
	ErrPermissionDenied = errors.New("remote: permission denied")
	// ErrUnavailable means the store could not be reached.
	ErrUnavailable = errors.New("remote: store unavailable")
)

// TargetDoc is the cloud-side projection of a target. It never carries the
// device-local row id; the document key is the content address.
type TargetDoc struct {
	Type        string     `firestore:"type" json:"type"`
	Name        string     `firestore:"name" json:"name"`
	ProblemLink string     `firestore:"problemLink" json:"problemLink"`
	TopicName   string     `firestore:"topicName" json:"topicName"`
	WebsiteURL  string     `firestore:"websiteUrl" json:"websiteUrl"`
	Status      string     `firestore:"status" json:"status"`
	Rating      *int       `firestore:"rating" json:"rating,omitempty"`
	CreatedAt   time.Time  `firestore:"createdAt" json:"createdAt"`
	Deadline    *time.Time `firestore:"deadline" json:"deadline,omitempty"`
	Archived    bool       `firestore:"archived" json:"archived"`
}

// HistoryDoc is the slim projection kept for achieved+archived targets.
type HistoryDoc struct {
	ID          string `firestore:"id" json:"id"`
	ProblemLink string `firestore:"problem_link" json:"problem_link"`
	Name        string `firestore:"name" json:"name"`
	Rating      *int   `firestore:"rating" json:"rating,omitempty"`
}

// FriendDoc mirrors one directed friend edge.
type FriendDoc struct {
	FriendEmail  string    `firestore:"friendEmail" json:"friendEmail"`
	FriendUID    string    `firestore:"friendUid" json:"friendUid,omitempty"`
	FriendRating *float64  `firestore:"friendRating" json:"friendRating,omitempty"`
	AddedAt      time.Time `firestore:"addedAt" json:"addedAt"`
}

// Store is the request/response surface the engine needs from the cloud
// document store. All writes are merge-upserts; none of them delete sibling
// fields the caller did not set.
type Store interface {
	UpsertTarget(ctx context.Context, uid, docID string, doc *TargetDoc) error
	ListTargets(ctx context.Context, uid string) (map[string]*TargetDoc, error)

	UpsertHistory(ctx context.Context, uid, docID string, doc *HistoryDoc) error
	ListHistory(ctx context.Context, uid string) (map[string]*HistoryDoc, error)

	SetUserFields(ctx context.Context, uid string, fields map[string]any) error
	GetUser(ctx context.Context, uid string) (*profile.UserDoc, error)

	SetPublicProfile(ctx context.Context, emailKey string, p *profile.PublicProfile) error
	GetPublicProfile(ctx context.Context, emailKey string) (*profile.PublicProfile, error)

	// QueryUIDByEmail scans the account collection for a matching email.
	// May be rejected by access rules; callers treat that as not-found.
	QueryUIDByEmail(ctx context.Context, email string) (string, error)

	SetFriend(ctx context.Context, uid, friendEmail string, doc *FriendDoc) error
	DeleteFriend(ctx context.Context, uid, friendEmail string) error

	SetDailyActivity(ctx context.Context, uid, date string, doc *activity.DailyActivity) error
	ListDailyActivity(ctx context.Context, uid string) ([]*activity.DailyActivity, error)
}
