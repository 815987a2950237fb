package profile

import (
	"strings"
	"time"
)

// UserDoc mirrors the per-account document at users/{uid}.
type UserDoc struct {
	Username               string    `json:"username" firestore:"username"`
	CodeforcesHandle       string    `json:"codeforcesHandle" firestore:"codeforcesHandle"`
	StartupPasswordEnabled bool      `json:"startupPasswordEnabled" firestore:"startupPasswordEnabled"`
	AllTimeSolve           int       `json:"allTimeSolve" firestore:"allTimeSolve"`
	AllTimeHistory         int       `json:"allTimeHistory" firestore:"allTimeHistory"`
	Rating                 float64   `json:"rating" firestore:"rating"`
	Email                  string    `json:"email" firestore:"email"`
	LastUpdated            time.Time `json:"lastUpdated" firestore:"lastUpdated"`
}

// PublicProfile mirrors userProfiles/{emailKey}, the email-addressable
// pointer friends use to discover an account's uid and rating without
// knowing its opaque id.
type PublicProfile struct {
	UID         string    `json:"uid" firestore:"uid"`
	Email       string    `json:"email" firestore:"email"`
	Rating      *float64  `json:"rating,omitempty" firestore:"rating"`
	LastUpdated time.Time `json:"lastUpdated" firestore:"lastUpdated"`
}

// EmailKey converts an email address into the document id used for the
// public profile collection. Fixed contract shared by every client:
// "." becomes "_" and "@" becomes "_at_".
func EmailKey(email string) string {
	key := strings.ToLower(strings.TrimSpace(email))
	key = strings.ReplaceAll(key, ".", "_")
	key = strings.ReplaceAll(key, "@", "_at_")
	return key
}
