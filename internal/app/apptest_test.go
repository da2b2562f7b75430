package app_test

import (
	"context"
	"fmt"
	"testing"

	"cybersensei-service/internal/app"
	"cybersensei-service/internal/domain"
	"cybersensei-service/internal/infra/memory"
)

// fixture bundles the services under test over a shared in-memory store.
type fixture struct {
	store       *memory.Store
	progression *app.ProgressionService
	attempts    *app.AttemptService
	stats       *app.StatsService
	friends     *app.FriendService
}

func newFixture(missions ...domain.Mission) *fixture {
	store := memory.NewStore()
	for _, m := range missions {
		store.AddMission(m)
	}
	progression := app.NewProgressionService(store, store, store, store)
	return &fixture{
		store:       store,
		progression: progression,
		attempts:    app.NewAttemptService(store, store, store, progression, nil),
		stats:       app.NewStatsService(store, store, store),
		friends:     app.NewFriendService(store, store),
	}
}

// mission builds a two-choice mission where choice "right" is correct.
func mission(id string, level, points int) domain.Mission {
	return domain.Mission{
		ID:    id,
		Level: level,
		Type:  "basico",
		Payload: domain.MissionPayload{
			Title:    "Mission " + id,
			Question: fmt.Sprintf("Question for level %d", level),
			Choices: []domain.Choice{
				{ID: "wrong", Text: "Wrong", IsCorrect: false},
				{ID: "right", Text: "Right", IsCorrect: true},
			},
			Scoring: domain.Scoring{Points: points},
		},
	}
}

// complete plays missionID to a correct finish for userID.
func (f *fixture) complete(t *testing.T, userID, missionID string) {
	t.Helper()
	ctx := context.Background()
	attempt, err := f.attempts.Start(ctx, userID, missionID)
	if err != nil {
		t.Fatalf("start %s: %v", missionID, err)
	}
	if _, err := f.attempts.SubmitAnswer(ctx, userID, attempt.ID, "right"); err != nil {
		t.Fatalf("submit %s: %v", missionID, err)
	}
}

// fail plays missionID to an incorrect finish for userID.
func (f *fixture) fail(t *testing.T, userID, missionID string) {
	t.Helper()
	ctx := context.Background()
	attempt, err := f.attempts.Start(ctx, userID, missionID)
	if err != nil {
		t.Fatalf("start %s: %v", missionID, err)
	}
	if _, err := f.attempts.SubmitAnswer(ctx, userID, attempt.ID, "wrong"); err != nil {
		t.Fatalf("submit %s: %v", missionID, err)
	}
}
