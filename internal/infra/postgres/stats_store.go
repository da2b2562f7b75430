package postgres

import (
	"context"
	"fmt"
	"time"

	"cybersensei-service/internal/domain"

	"github.com/uptrace/bun"
)

// StatsStore holds the XP counter and computes the derived metrics the core
// consumes as opaque integers.
type StatsStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewStatsStore(db *bun.DB) *StatsStore {
	return &StatsStore{db: db, now: time.Now}
}

// AddXP is a single server-side increment. Two concurrent finishes both land;
// neither can lose the other's update.
func (s *StatsStore) AddXP(ctx context.Context, userID string, amount int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_stats (user_id, xp) VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET xp = user_stats.xp + EXCLUDED.xp`,
		userID, amount)
	if err != nil {
		return fmt.Errorf("add xp: %w", err)
	}
	return nil
}

func (s *StatsStore) XP(ctx context.Context, userID string) (int, error) {
	var xp int
	err := s.db.NewRaw(
		`SELECT COALESCE((SELECT xp FROM user_stats WHERE user_id = ?), 0)`,
		userID).Scan(ctx, &xp)
	if err != nil {
		return 0, fmt.Errorf("read xp: %w", err)
	}
	return xp, nil
}

// MaxCompletedLevel is recomputed from the ledger on every call; completion
// is never stored as a mutable field.
func (s *StatsStore) MaxCompletedLevel(ctx context.Context, userID string) (int, error) {
	var level int
	err := s.db.NewRaw(`
		SELECT COALESCE(MAX(m.level), 0)
		FROM attempts a
		JOIN missions m ON m.id = a.mission_id
		WHERE a.user_id = ? AND (a.result ->> 'correct')::boolean`,
		userID).Scan(ctx, &level)
	if err != nil {
		return 0, fmt.Errorf("max completed level: %w", err)
	}
	return level, nil
}

// DailyStreak counts consecutive days with at least one finished attempt,
// walking backwards from today (or yesterday, if today has none yet).
func (s *StatsStore) DailyStreak(ctx context.Context, userID string) (int, error) {
	var days []time.Time
	err := s.db.NewRaw(`
		SELECT DISTINCT date_trunc('day', finished_at)::date AS day
		FROM attempts
		WHERE user_id = ? AND finished_at IS NOT NULL
		ORDER BY day DESC`,
		userID).Scan(ctx, &days)
	if err != nil {
		return 0, fmt.Errorf("daily streak: %w", err)
	}
	if len(days) == 0 {
		return 0, nil
	}

	cursor := s.now().Truncate(24 * time.Hour)
	if !sameDay(days[0], cursor) {
		cursor = cursor.AddDate(0, 0, -1)
	}
	streak := 0
	for _, day := range days {
		if !sameDay(day, cursor) {
			break
		}
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak, nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func (s *StatsStore) PlaytimeMinutes(ctx context.Context, userID string) (int, error) {
	var minutes int
	err := s.db.NewRaw(`
		SELECT COALESCE(EXTRACT(EPOCH FROM SUM(finished_at - started_at)) / 60, 0)::int
		FROM attempts
		WHERE user_id = ? AND finished_at IS NOT NULL`,
		userID).Scan(ctx, &minutes)
	if err != nil {
		return 0, fmt.Errorf("playtime: %w", err)
	}
	return minutes, nil
}

func (s *StatsStore) TopByXP(ctx context.Context, limit int) ([]domain.BoardEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.user_id, p.username, s.xp
		FROM user_stats s
		JOIN profiles p ON p.id = s.user_id
		ORDER BY s.xp DESC, p.username ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.BoardEntry
	for rows.Next() {
		var e domain.BoardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.XP); err != nil {
			return nil, fmt.Errorf("leaderboard scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
