package app_test

import (
	"context"
	"errors"
	"testing"

	"cybersensei-service/internal/domain"
)

func TestUnlockedLevelStartsAtOne(t *testing.T) {
	f := newFixture(mission("m1", 1, 10))

	unlocked, err := f.progression.UnlockedLevel(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unlocked level: %v", err)
	}
	if unlocked != 1 {
		t.Fatalf("expected level 1 unlocked with no attempts, got %d", unlocked)
	}
}

func TestUnlockedLevelFollowsCompletions(t *testing.T) {
	f := newFixture(mission("m1", 1, 10), mission("m2", 2, 10), mission("m3", 3, 10))
	ctx := context.Background()

	f.complete(t, "u1", "m1")
	f.complete(t, "u1", "m2")
	// A failed attempt at level 3 must not unlock anything.
	f.fail(t, "u1", "m3")

	unlocked, err := f.progression.UnlockedLevel(ctx, "u1")
	if err != nil {
		t.Fatalf("unlocked level: %v", err)
	}
	if unlocked != 3 {
		t.Fatalf("expected level 3 unlocked, got %d", unlocked)
	}
}

func TestNextMissionPrefersSiblings(t *testing.T) {
	// Two missions share level 1; both must be played before advancing.
	f := newFixture(mission("m1a", 1, 10), mission("m1b", 1, 10), mission("m2", 2, 10))
	ctx := context.Background()

	f.complete(t, "u1", "m1a")

	next, err := f.progression.NextMission(ctx, "u1", "m1a")
	if err != nil {
		t.Fatalf("next mission: %v", err)
	}
	if next.ID != "m1b" {
		t.Fatalf("expected sibling m1b, got %s", next.ID)
	}

	f.complete(t, "u1", "m1b")
	next, err = f.progression.NextMission(ctx, "u1", "m1b")
	if err != nil {
		t.Fatalf("next mission: %v", err)
	}
	if next.ID != "m2" {
		t.Fatalf("expected m2 once siblings are done, got %s", next.ID)
	}
}

func TestNextMissionCrossesStageBoundary(t *testing.T) {
	// Level 8 is the last ordinary level of the first stage, 9 its test,
	// 10 the first level of the next stage.
	f := newFixture(mission("m8", 8, 10), mission("m9", 9, 50), mission("m10", 10, 10))
	ctx := context.Background()

	next, err := f.progression.NextMission(ctx, "u1", "m8")
	if err != nil {
		t.Fatalf("next after m8: %v", err)
	}
	if next.ID != "m9" {
		t.Fatalf("expected ascension test m9 after level 8, got %s", next.ID)
	}

	next, err = f.progression.NextMission(ctx, "u1", "m9")
	if err != nil {
		t.Fatalf("next after m9: %v", err)
	}
	if next.ID != "m10" {
		t.Fatalf("expected next stage to open with m10, got %s", next.ID)
	}
}

func TestNextMissionPathComplete(t *testing.T) {
	f := newFixture(mission("m1", 1, 10))

	_, err := f.progression.NextMission(context.Background(), "u1", "m1")
	if !errors.Is(err, domain.ErrPathComplete) {
		t.Fatalf("expected path complete, got %v", err)
	}
}

func TestNextMissionUnknownMission(t *testing.T) {
	f := newFixture(mission("m1", 1, 10))

	_, err := f.progression.NextMission(context.Background(), "u1", "nope")
	if !errors.Is(err, domain.ErrMissionNotFound) {
		t.Fatalf("expected mission not found, got %v", err)
	}
}

func TestOverviewGroupsByStage(t *testing.T) {
	f := newFixture(mission("m1", 1, 10), mission("m9", 9, 50), mission("m10", 10, 10))
	ctx := context.Background()

	if err := f.store.Ensure(ctx, domain.Profile{ID: "u1", Username: "alice"}); err != nil {
		t.Fatalf("ensure profile: %v", err)
	}
	f.complete(t, "u1", "m1")

	overview, err := f.progression.Overview(ctx, "u1")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if overview.Profile.Username != "alice" {
		t.Fatalf("expected profile alice, got %+v", overview.Profile)
	}
	if overview.UnlockedLevel != 2 {
		t.Fatalf("expected unlocked level 2, got %d", overview.UnlockedLevel)
	}
	if overview.XP != 10 {
		t.Fatalf("expected 10 xp, got %d", overview.XP)
	}
	if len(overview.Stages) != 2 {
		t.Fatalf("expected 2 stage groups, got %d", len(overview.Stages))
	}
	first := overview.Stages[0]
	if len(first.Missions) != 1 || first.Missions[0].ID != "m1" {
		t.Fatalf("expected m1 in first stage, got %+v", first.Missions)
	}
	if first.TestMission == nil || first.TestMission.ID != "m9" {
		t.Fatalf("expected m9 as first stage test, got %+v", first.TestMission)
	}
}
