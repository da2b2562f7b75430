package app

import (
	"context"
	"time"

	"cybersensei-service/internal/domain"

	"github.com/google/uuid"
)

// AttemptFilter narrows a ledger listing. Zero values mean no filtering.
type AttemptFilter struct {
	MissionID string
	Level     int
}

// AttemptStore persists the attempt ledger. Attempts are append/update only:
// Finish must refuse to touch an attempt that already carries a result.
type AttemptStore interface {
	Insert(ctx context.Context, attempt domain.Attempt) error
	Get(ctx context.Context, attemptID string) (domain.Attempt, error)
	Finish(ctx context.Context, attemptID string, finishedAt time.Time, result domain.AttemptResult) error
	ListByUser(ctx context.Context, userID string, filter AttemptFilter) ([]domain.Attempt, error)
}

// StatsStore holds the XP counter and the store-computed metrics. AddXP must
// be a single atomic server-side increment, never read-modify-write.
type StatsStore interface {
	AddXP(ctx context.Context, userID string, amount int) error
	XP(ctx context.Context, userID string) (int, error)
	MaxCompletedLevel(ctx context.Context, userID string) (int, error)
	DailyStreak(ctx context.Context, userID string) (int, error)
	PlaytimeMinutes(ctx context.Context, userID string) (int, error)
	TopByXP(ctx context.Context, limit int) ([]domain.BoardEntry, error)
}

// BoardNotifier is poked after an XP award so live scoreboard feeds refresh.
type BoardNotifier interface {
	Refresh(ctx context.Context)
}

// AttemptService owns the lifecycle of a question attempt: started on entry,
// finished exactly once with a server-scored result.
type AttemptService struct {
	missions    MissionRepository
	attempts    AttemptStore
	stats       StatsStore
	progression *ProgressionService
	board       BoardNotifier
	now         func() time.Time
	newID       func() string
}

func NewAttemptService(missions MissionRepository, attempts AttemptStore, stats StatsStore, progression *ProgressionService, board BoardNotifier) *AttemptService {
	return &AttemptService{
		missions:    missions,
		attempts:    attempts,
		stats:       stats,
		progression: progression,
		board:       board,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *AttemptService) WithClock(now func() time.Time) *AttemptService {
	s.now = now
	return s
}

// Start opens a fresh attempt for a mission. Starting the same mission twice
// creates two open attempts; the ledger does not dedup. The level gate is
// enforced here because starting is a side effect.
func (s *AttemptService) Start(ctx context.Context, userID, missionID string) (domain.Attempt, error) {
	mission, err := s.missions.GetMission(ctx, missionID)
	if err != nil {
		return domain.Attempt{}, err
	}
	if err := s.progression.EnsureAccessible(ctx, userID, mission.Level); err != nil {
		return domain.Attempt{}, err
	}

	attempt := domain.Attempt{
		ID:        s.newID(),
		UserID:    userID,
		MissionID: missionID,
		StartedAt: s.now(),
	}
	if err := s.attempts.Insert(ctx, attempt); err != nil {
		return domain.Attempt{}, err
	}
	return attempt, nil
}

// SubmitAnswer scores the chosen choice against the mission content, records
// the result on the open attempt, and awards XP atomically on a correct
// answer. A retried submit on an already-finished attempt fails with
// ErrAttemptNotFound and never double-awards.
func (s *AttemptService) SubmitAnswer(ctx context.Context, userID, attemptID, choiceID string) (domain.AttemptResult, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return domain.AttemptResult{}, err
	}
	if attempt.UserID != userID || attempt.Finished() {
		return domain.AttemptResult{}, domain.ErrAttemptNotFound
	}

	mission, err := s.missions.GetMission(ctx, attempt.MissionID)
	if err != nil {
		return domain.AttemptResult{}, err
	}

	correct, points, err := scoreChoice(mission, choiceID)
	if err != nil {
		return domain.AttemptResult{}, err
	}

	result := domain.AttemptResult{Correct: correct}
	if correct {
		result.Score = points
	}
	if err := s.attempts.Finish(ctx, attemptID, s.now(), result); err != nil {
		return domain.AttemptResult{}, err
	}

	if correct && result.Score > 0 {
		if err := s.stats.AddXP(ctx, userID, result.Score); err != nil {
			return domain.AttemptResult{}, err
		}
		if s.board != nil {
			s.board.Refresh(ctx)
		}
	}
	return result, nil
}

// List returns the learner's attempts, optionally filtered.
func (s *AttemptService) List(ctx context.Context, userID string, filter AttemptFilter) ([]domain.Attempt, error) {
	return s.attempts.ListByUser(ctx, userID, filter)
}

// scoreChoice validates the choice against mission content and returns
// (correct, points). Zero configured points count as one.
func scoreChoice(mission domain.Mission, choiceID string) (bool, int, error) {
	var chosen *domain.Choice
	for i := range mission.Payload.Choices {
		if mission.Payload.Choices[i].ID == choiceID {
			chosen = &mission.Payload.Choices[i]
			break
		}
	}
	if chosen == nil {
		return false, 0, domain.ErrChoiceNotFound
	}

	points := mission.Payload.Scoring.Points
	if points == 0 {
		points = 1
	}
	if chosen.IsCorrect {
		return true, points, nil
	}
	return false, 0, nil
}
