package friendship

import "time"

// Friendship is a directed edge: the owner follows the friend. The friend
// account holds no mirror record. FriendUID is a best-effort cache filled in
// by the resolver chain once the friend's cloud account id is discovered.
type Friendship struct {
	ID          int64     `json:"id" db:"id"`
	UserEmail   string    `json:"user_email" db:"user_email"`
	FriendEmail string    `json:"friend_email" db:"friend_email"`
	FriendUID   string    `json:"friend_uid,omitempty" db:"friend_uid"`
	AddedAt     time.Time `json:"added_at" db:"added_at"`
}

type AddFriendRequest struct {
	FriendEmail string `json:"friend_email" validate:"required,email"`
}

// PublicStats is what one account may read about a friend: the mirrored
// rating and solve count from the friend's public profile. Unavailable
// fields stay nil when the remote store denies the read.
type PublicStats struct {
	FriendEmail string   `json:"friend_email"`
	FriendUID   string   `json:"friend_uid,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	SolvedCount *int     `json:"solved_count,omitempty"`
}
