package remote

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"codeGoalsAPI/internal/types/activity"
	"codeGoalsAPI/internal/types/profile"
)

// FirestoreStore implements Store on Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) targets(uid string) *firestore.CollectionRef {
	return s.client.Collection("users").Doc(uid).Collection("targets")
}

func (s *FirestoreStore) history(uid string) *firestore.CollectionRef {
	return s.client.Collection("users").Doc(uid).Collection("history")
}

func (s *FirestoreStore) UpsertTarget(ctx context.Context, uid, docID string, doc *TargetDoc) error {
	fields := map[string]any{
		"type":        doc.Type,
		"name":        doc.Name,
		"problemLink": doc.ProblemLink,
		"topicName":   doc.TopicName,
		"websiteUrl":  doc.WebsiteURL,
		"status":      doc.Status,
		"createdAt":   doc.CreatedAt,
		"archived":    doc.Archived,
	}
	if doc.Rating != nil {
		fields["rating"] = *doc.Rating
	}
	if doc.Deadline != nil {
		fields["deadline"] = *doc.Deadline
	}

	_, err := s.targets(uid).Doc(docID).Set(ctx, fields, firestore.MergeAll)
	return mapErr(err)
}

func (s *FirestoreStore) ListTargets(ctx context.Context, uid string) (map[string]*TargetDoc, error) {
	out := make(map[string]*TargetDoc)

	iter := s.targets(uid).Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapErr(err)
		}

		doc := &TargetDoc{}
		if err := snap.DataTo(doc); err != nil {
			log.Printf("FirestoreStore: skipping malformed target doc %s: %v", snap.Ref.ID, err)
			continue
		}
		out[snap.Ref.ID] = doc
	}
	return out, nil
}

func (s *FirestoreStore) UpsertHistory(ctx context.Context, uid, docID string, doc *HistoryDoc) error {
	fields := map[string]any{
		"id":           doc.ID,
		"problem_link": doc.ProblemLink,
		"name":         doc.Name,
	}
	if doc.Rating != nil {
		fields["rating"] = *doc.Rating
	}

	_, err := s.history(uid).Doc(docID).Set(ctx, fields, firestore.MergeAll)
	return mapErr(err)
}

func (s *FirestoreStore) ListHistory(ctx context.Context, uid string) (map[string]*HistoryDoc, error) {
	out := make(map[string]*HistoryDoc)

	iter := s.history(uid).Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapErr(err)
		}

		doc := &HistoryDoc{}
		if err := snap.DataTo(doc); err != nil {
			log.Printf("FirestoreStore: skipping malformed history doc %s: %v", snap.Ref.ID, err)
			continue
		}
		out[snap.Ref.ID] = doc
	}
	return out, nil
}

func (s *FirestoreStore) SetUserFields(ctx context.Context, uid string, fields map[string]any) error {
	_, err := s.client.Collection("users").Doc(uid).Set(ctx, fields, firestore.MergeAll)
	return mapErr(err)
}

func (s *FirestoreStore) GetUser(ctx context.Context, uid string) (*profile.UserDoc, error) {
	snap, err := s.client.Collection("users").Doc(uid).Get(ctx)
	if err != nil {
		return nil, mapErr(err)
	}

	doc := &profile.UserDoc{}
	if err := snap.DataTo(doc); err != nil {
		return nil, fmt.Errorf("failed to decode user doc: %w", err)
	}
	return doc, nil
}

func (s *FirestoreStore) SetPublicProfile(ctx context.Context, emailKey string, p *profile.PublicProfile) error {
	fields := map[string]any{
		"uid":         p.UID,
		"email":       p.Email,
		"lastUpdated": p.LastUpdated,
	}
	if p.Rating != nil {
		fields["rating"] = *p.Rating
	}

	_, err := s.client.Collection("userProfiles").Doc(emailKey).Set(ctx, fields, firestore.MergeAll)
	return mapErr(err)
}

func (s *FirestoreStore) GetPublicProfile(ctx context.Context, emailKey string) (*profile.PublicProfile, error) {
	snap, err := s.client.Collection("userProfiles").Doc(emailKey).Get(ctx)
	if err != nil {
		return nil, mapErr(err)
	}

	p := &profile.PublicProfile{}
	if err := snap.DataTo(p); err != nil {
		return nil, fmt.Errorf("failed to decode public profile: %w", err)
	}
	return p, nil
}

func (s *FirestoreStore) QueryUIDByEmail(ctx context.Context, email string) (string, error) {
	iter := s.client.Collection("users").Where("email", "==", email).Limit(1).Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return "", ErrNotFound
	}
	if err != nil {
		return "", mapErr(err)
	}
	return snap.Ref.ID, nil
}

func (s *FirestoreStore) SetFriend(ctx context.Context, uid, friendEmail string, doc *FriendDoc) error {
	fields := map[string]any{
		"friendEmail": doc.FriendEmail,
		"addedAt":     doc.AddedAt,
	}
	if doc.FriendUID != "" {
		fields["friendUid"] = doc.FriendUID
	}
	if doc.FriendRating != nil {
		fields["friendRating"] = *doc.FriendRating
	}

	_, err := s.client.Collection("users").Doc(uid).Collection("friends").Doc(friendEmail).Set(ctx, fields, firestore.MergeAll)
	return mapErr(err)
}

func (s *FirestoreStore) DeleteFriend(ctx context.Context, uid, friendEmail string) error {
	_, err := s.client.Collection("users").Doc(uid).Collection("friends").Doc(friendEmail).Delete(ctx)
	return mapErr(err)
}

func (s *FirestoreStore) SetDailyActivity(ctx context.Context, uid, date string, doc *activity.DailyActivity) error {
	fields := map[string]any{
		"problemCount": doc.ProblemCount,
		"topicCount":   doc.TopicCount,
		"timestamp":    doc.Timestamp,
	}

	_, err := s.client.Collection("users").Doc(uid).Collection("dailyActivity").Doc(date).Set(ctx, fields, firestore.MergeAll)
	return mapErr(err)
}

func (s *FirestoreStore) ListDailyActivity(ctx context.Context, uid string) ([]*activity.DailyActivity, error) {
	var out []*activity.DailyActivity

	iter := s.client.Collection("users").Doc(uid).Collection("dailyActivity").Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapErr(err)
		}

		doc := &activity.DailyActivity{}
		if err := snap.DataTo(doc); err != nil {
			log.Printf("FirestoreStore: skipping malformed activity doc %s: %v", snap.Ref.ID, err)
			continue
		}
		doc.Date = snap.Ref.ID
		out = append(out, doc)
	}
	return out, nil
}

// mapErr translates transport errors into the package taxonomy so callers
// can errors.Is against the sentinels without importing grpc.
func mapErr(err error) error {
	if err == nil {
		return nil
	}

	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
