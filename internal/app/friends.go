package app

import (
	"context"

	"cybersensei-service/internal/domain"
)

const searchLimit = 5

// FriendStore persists directed friendship edges. InsertEdge must map the
// store's unique-constraint violation to domain.ErrDuplicateRequest; that
// constraint, not the application pre-check, is the race-free guarantee.
type FriendStore interface {
	InsertEdge(ctx context.Context, edge domain.FriendshipEdge) error
	EdgeBetween(ctx context.Context, userID, otherID string) (domain.FriendshipEdge, bool, error)
	Accept(ctx context.Context, requesterID, receiverID string) error
	DeletePending(ctx context.Context, requesterID, receiverID string) error
	DeleteBetween(ctx context.Context, userID, otherID string) error
	RelationsFor(ctx context.Context, userID string) ([]domain.Relation, error)
}

// ProfileStore persists learner profiles and answers username searches.
type ProfileStore interface {
	Ensure(ctx context.Context, profile domain.Profile) error
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
	Search(ctx context.Context, query, excludeUserID string, limit int) ([]domain.Candidate, error)
}

// FriendService drives the friendship state machine:
// none -> pending -> {accepted | none}, accepted -> none.
type FriendService struct {
	edges    FriendStore
	profiles ProfileStore
}

func NewFriendService(edges FriendStore, profiles ProfileStore) *FriendService {
	return &FriendService{edges: edges, profiles: profiles}
}

// SendRequest creates a pending edge from the initiator. Any existing edge
// between the pair, in either direction and any status, is a duplicate.
func (s *FriendService) SendRequest(ctx context.Context, from, to string) error {
	// Fast path for a friendly error; the unique index catches the race.
	if _, exists, err := s.edges.EdgeBetween(ctx, from, to); err != nil {
		return err
	} else if exists {
		return domain.ErrDuplicateRequest
	}

	return s.edges.InsertEdge(ctx, domain.FriendshipEdge{
		RequesterID: from,
		ReceiverID:  to,
		Status:      domain.FriendshipPending,
	})
}

// Respond resolves a pending request addressed to receiverID. Accepting
// transitions the edge to accepted; declining deletes it. Only the edge
// matching exactly that (requester, receiver) direction qualifies.
func (s *FriendService) Respond(ctx context.Context, requesterID, receiverID string, accept bool) error {
	if accept {
		return s.edges.Accept(ctx, requesterID, receiverID)
	}
	return s.edges.DeletePending(ctx, requesterID, receiverID)
}

// Remove terminates a friendship regardless of which side sent the original
// request. Either party may call it.
func (s *FriendService) Remove(ctx context.Context, userID, otherID string) error {
	return s.edges.DeleteBetween(ctx, userID, otherID)
}

// Relations returns every edge touching the learner, annotated with
// IsRequester so callers can split pending-incoming, pending-outgoing, and
// accepted without re-deriving direction.
func (s *FriendService) Relations(ctx context.Context, userID string) ([]domain.Relation, error) {
	return s.edges.RelationsFor(ctx, userID)
}

// SearchCandidates matches usernames case-insensitively by substring,
// excluding the searcher and capping the result count.
func (s *FriendService) SearchCandidates(ctx context.Context, query, excludeUserID string) ([]domain.Candidate, error) {
	return s.profiles.Search(ctx, query, excludeUserID, searchLimit)
}
