package remote

import (
	"context"
	"sync"

	"codeGoalsAPI/internal/types/activity"
	"codeGoalsAPI/internal/types/profile"
)

// MemoryStore is an in-process Store. The server falls back to it when
// cloud credentials are absent (sync then only converges devices that share
// the process), and tests use one instance as the shared cloud between
// simulated devices.
type MemoryStore struct {
	mu sync.Mutex

	targets  map[string]map[string]*TargetDoc  // uid -> docID -> doc
	history  map[string]map[string]*HistoryDoc // uid -> docID -> doc
	users    map[string]*profile.UserDoc
	profiles map[string]*profile.PublicProfile
	friends  map[string]map[string]*FriendDoc
	daily    map[string]map[string]*activity.DailyActivity

	// DenyProfileReads simulates access rules rejecting friend stat reads.
	DenyProfileReads bool
	// DenyUserQueries simulates access rules rejecting collection queries.
	DenyUserQueries bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		targets:  make(map[string]map[string]*TargetDoc),
		history:  make(map[string]map[string]*HistoryDoc),
		users:    make(map[string]*profile.UserDoc),
		profiles: make(map[string]*profile.PublicProfile),
		friends:  make(map[string]map[string]*FriendDoc),
		daily:    make(map[string]map[string]*activity.DailyActivity),
	}
}

func (s *MemoryStore) UpsertTarget(_ context.Context, uid, docID string, doc *TargetDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.targets[uid] == nil {
		s.targets[uid] = make(map[string]*TargetDoc)
	}
	cp := *doc
	s.targets[uid][docID] = &cp
	return nil
}

func (s *MemoryStore) ListTargets(_ context.Context, uid string) (map[string]*TargetDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*TargetDoc, len(s.targets[uid]))
	for id, doc := range s.targets[uid] {
		cp := *doc
		out[id] = &cp
	}
	return out, nil
}

func (s *MemoryStore) UpsertHistory(_ context.Context, uid, docID string, doc *HistoryDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.history[uid] == nil {
		s.history[uid] = make(map[string]*HistoryDoc)
	}
	cp := *doc
	s.history[uid][docID] = &cp
	return nil
}

func (s *MemoryStore) ListHistory(_ context.Context, uid string) (map[string]*HistoryDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*HistoryDoc, len(s.history[uid]))
	for id, doc := range s.history[uid] {
		cp := *doc
		out[id] = &cp
	}
	return out, nil
}

func (s *MemoryStore) SetUserFields(_ context.Context, uid string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.users[uid]
	if doc == nil {
		doc = &profile.UserDoc{}
		s.users[uid] = doc
	}
	for k, v := range fields {
		switch k {
		case "username":
			doc.Username, _ = v.(string)
		case "codeforcesHandle":
			doc.CodeforcesHandle, _ = v.(string)
		case "startupPasswordEnabled":
			doc.StartupPasswordEnabled, _ = v.(bool)
		case "allTimeSolve":
			if n, ok := v.(int); ok {
				doc.AllTimeSolve = n
			}
		case "allTimeHistory":
			if n, ok := v.(int); ok {
				doc.AllTimeHistory = n
			}
		case "rating":
			if f, ok := v.(float64); ok {
				doc.Rating = f
			}
		case "email":
			doc.Email, _ = v.(string)
		}
	}
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, uid string) (*profile.UserDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.users[uid]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *MemoryStore) SetPublicProfile(_ context.Context, emailKey string, p *profile.PublicProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.profiles[emailKey] = &cp
	return nil
}

func (s *MemoryStore) GetPublicProfile(_ context.Context, emailKey string) (*profile.PublicProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.DenyProfileReads {
		return nil, ErrPermissionDenied
	}
	p, ok := s.profiles[emailKey]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) QueryUIDByEmail(_ context.Context, email string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.DenyUserQueries {
		return "", ErrPermissionDenied
	}
	for uid, doc := range s.users {
		if doc.Email == email {
			return uid, nil
		}
	}
	return "", ErrNotFound
}

func (s *MemoryStore) SetFriend(_ context.Context, uid, friendEmail string, doc *FriendDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.friends[uid] == nil {
		s.friends[uid] = make(map[string]*FriendDoc)
	}
	cp := *doc
	s.friends[uid][friendEmail] = &cp
	return nil
}

func (s *MemoryStore) DeleteFriend(_ context.Context, uid, friendEmail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.friends[uid], friendEmail)
	return nil
}

func (s *MemoryStore) SetDailyActivity(_ context.Context, uid, date string, doc *activity.DailyActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.daily[uid] == nil {
		s.daily[uid] = make(map[string]*activity.DailyActivity)
	}
	cp := *doc
	cp.Date = date
	s.daily[uid][date] = &cp
	return nil
}

func (s *MemoryStore) ListDailyActivity(_ context.Context, uid string) ([]*activity.DailyActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*activity.DailyActivity, 0, len(s.daily[uid]))
	for _, doc := range s.daily[uid] {
		cp := *doc
		out = append(out, &cp)
	}
	return out, nil
}

// TargetCount reports the number of target documents for an account.
// Used by idempotence tests.
func (s *MemoryStore) TargetCount(uid string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.targets[uid])
}
