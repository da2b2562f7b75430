package app

import (
	"context"
	"log"

	"cybersensei-service/internal/domain"
)

// BadgeStore reads badge membership; awarding is done elsewhere.
type BadgeStore interface {
	BadgesFor(ctx context.Context, userID string) ([]domain.Badge, error)
}

// StatsService is the read side of the profile screen: counts derived from
// the attempt ledger plus pass-through metrics from the store.
type StatsService struct {
	attempts AttemptStore
	stats    StatsStore
	badges   BadgeStore
}

func NewStatsService(attempts AttemptStore, stats StatsStore, badges BadgeStore) *StatsService {
	return &StatsService{attempts: attempts, stats: stats, badges: badges}
}

// Aggregate derives the learner's stats. Correct/incorrect counts include
// every finished attempt (no dedup); missions completed counts distinct
// missions with at least one correct attempt; abandoned attempts count
// toward neither. XP, streak, and playtime each fall back to zero
// independently when their store read fails, so one bad metric never blanks
// the whole screen.
func (s *StatsService) Aggregate(ctx context.Context, userID string) (domain.PlayerStats, error) {
	attempts, err := s.attempts.ListByUser(ctx, userID, AttemptFilter{})
	if err != nil {
		return domain.PlayerStats{}, err
	}

	stats := domain.PlayerStats{}
	completed := make(map[string]struct{})
	for _, a := range attempts {
		if a.Result == nil {
			continue
		}
		if a.Result.Correct {
			stats.Correct++
			completed[a.MissionID] = struct{}{}
		} else {
			stats.Incorrect++
		}
	}
	stats.MissionsCompleted = len(completed)

	if xp, err := s.stats.XP(ctx, userID); err != nil {
		log.Printf("stats: xp read failed for %s: %v", userID, err)
	} else {
		stats.XP = xp
	}
	if streak, err := s.stats.DailyStreak(ctx, userID); err != nil {
		log.Printf("stats: streak read failed for %s: %v", userID, err)
	} else {
		stats.Streak = streak
	}
	if minutes, err := s.stats.PlaytimeMinutes(ctx, userID); err != nil {
		log.Printf("stats: playtime read failed for %s: %v", userID, err)
	} else {
		stats.TimeInvested = minutes
	}

	return stats, nil
}

// Badges returns the badges the learner has earned.
func (s *StatsService) Badges(ctx context.Context, userID string) ([]domain.Badge, error) {
	return s.badges.BadgesFor(ctx, userID)
}
