package app_test

import (
	"context"
	"errors"
	"testing"

	"cybersensei-service/internal/domain"
)

func seedProfiles(t *testing.T, f *fixture, users ...string) {
	t.Helper()
	for _, u := range users {
		if err := f.store.Ensure(context.Background(), domain.Profile{ID: u, Username: "name-" + u}); err != nil {
			t.Fatalf("ensure %s: %v", u, err)
		}
	}
}

func TestSendRequestDuplicateEitherDirection(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seedProfiles(t, f, "a", "b")

	if err := f.friends.SendRequest(ctx, "a", "b"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := f.friends.SendRequest(ctx, "a", "b"); !errors.Is(err, domain.ErrDuplicateRequest) {
		t.Fatalf("expected duplicate on resend, got %v", err)
	}
	// The reverse direction is the same unordered pair.
	if err := f.friends.SendRequest(ctx, "b", "a"); !errors.Is(err, domain.ErrDuplicateRequest) {
		t.Fatalf("expected duplicate on reverse request, got %v", err)
	}
}

func TestRespondAcceptVisibleToBothSides(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seedProfiles(t, f, "a", "b")

	if err := f.friends.SendRequest(ctx, "a", "b"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := f.friends.Respond(ctx, "a", "b", true); err != nil {
		t.Fatalf("accept: %v", err)
	}

	relsA, err := f.friends.Relations(ctx, "a")
	if err != nil {
		t.Fatalf("relations a: %v", err)
	}
	if len(relsA) != 1 || relsA[0].Status != domain.FriendshipAccepted || !relsA[0].IsRequester {
		t.Fatalf("requester view wrong: %+v", relsA)
	}
	if relsA[0].UserID != "b" || relsA[0].Username != "name-b" {
		t.Fatalf("expected other side b, got %+v", relsA[0])
	}

	relsB, err := f.friends.Relations(ctx, "b")
	if err != nil {
		t.Fatalf("relations b: %v", err)
	}
	if len(relsB) != 1 || relsB[0].Status != domain.FriendshipAccepted || relsB[0].IsRequester {
		t.Fatalf("receiver view wrong: %+v", relsB)
	}
}

func TestRespondDeclineDeletesEdge(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seedProfiles(t, f, "a", "b")

	if err := f.friends.SendRequest(ctx, "a", "b"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := f.friends.Respond(ctx, "a", "b", false); err != nil {
		t.Fatalf("decline: %v", err)
	}

	rels, _ := f.friends.Relations(ctx, "a")
	if len(rels) != 0 {
		t.Fatalf("expected edge gone after decline, got %+v", rels)
	}
	// The pair may try again after a decline.
	if err := f.friends.SendRequest(ctx, "b", "a"); err != nil {
		t.Fatalf("request after decline: %v", err)
	}
}

func TestRespondWrongDirectionFails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seedProfiles(t, f, "a", "b")

	if err := f.friends.SendRequest(ctx, "a", "b"); err != nil {
		t.Fatalf("request: %v", err)
	}
	// b is the receiver; responding as if b had requested must not match.
	if err := f.friends.Respond(ctx, "b", "a", true); !errors.Is(err, domain.ErrEdgeNotFound) {
		t.Fatalf("expected edge not found for wrong direction, got %v", err)
	}
}

func TestRemoveWorksFromEitherSide(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seedProfiles(t, f, "a", "b")

	if err := f.friends.SendRequest(ctx, "a", "b"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := f.friends.Respond(ctx, "a", "b", true); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// The receiver removes the friendship even though a stored the edge.
	if err := f.friends.Remove(ctx, "b", "a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	rels, _ := f.friends.Relations(ctx, "a")
	if len(rels) != 0 {
		t.Fatalf("expected no relations after removal, got %+v", rels)
	}

	if err := f.friends.Remove(ctx, "b", "a"); !errors.Is(err, domain.ErrEdgeNotFound) {
		t.Fatalf("expected edge not found on second removal, got %v", err)
	}
}

func TestSearchExcludesSelfAndCaps(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for _, u := range []string{"me", "u1", "u2", "u3", "u4", "u5", "u6"} {
		if err := f.store.Ensure(ctx, domain.Profile{ID: u, Username: "Sensei-" + u}); err != nil {
			t.Fatalf("ensure %s: %v", u, err)
		}
	}

	// Case-insensitive substring match.
	results, err := f.friends.SearchCandidates(ctx, "sensei", "me")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected capped result of 5, got %d", len(results))
	}
	for _, c := range results {
		if c.ID == "me" {
			t.Fatalf("search returned the searcher: %+v", results)
		}
	}
}
