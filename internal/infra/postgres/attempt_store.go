package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cybersensei-service/internal/app"
	"cybersensei-service/internal/domain"

	"github.com/uptrace/bun"
)

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts,alias:attempt"`

	ID         string          `bun:"id,pk"`
	UserID     string          `bun:"user_id"`
	MissionID  string          `bun:"mission_id"`
	StartedAt  time.Time       `bun:"started_at"`
	FinishedAt *time.Time      `bun:"finished_at"`
	Result     json.RawMessage `bun:"result,type:jsonb"`
}

func (r attemptRow) toDomain() (domain.Attempt, error) {
	attempt := domain.Attempt{
		ID:         r.ID,
		UserID:     r.UserID,
		MissionID:  r.MissionID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	if len(r.Result) > 0 {
		var result domain.AttemptResult
		if err := json.Unmarshal(r.Result, &result); err != nil {
			return domain.Attempt{}, fmt.Errorf("unmarshal attempt result: %w", err)
		}
		attempt.Result = &result
	}
	return attempt, nil
}

// AttemptStore is the Postgres attempt ledger.
type AttemptStore struct {
	db *bun.DB
}

func NewAttemptStore(db *bun.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) Insert(ctx context.Context, attempt domain.Attempt) error {
	row := attemptRow{
		ID:        attempt.ID,
		UserID:    attempt.UserID,
		MissionID: attempt.MissionID,
		StartedAt: attempt.StartedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) Get(ctx context.Context, attemptID string) (domain.Attempt, error) {
	var row attemptRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", attemptID).Scan(ctx)
	if err == sql.ErrNoRows {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	return row.toDomain()
}

// Finish writes the result exactly once. The finished_at guard makes a
// retried submit fail instead of silently overwriting the first result.
func (s *AttemptStore) Finish(ctx context.Context, attemptID string, finishedAt time.Time, result domain.AttemptResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal attempt result: %w", err)
	}

	res, err := s.db.NewUpdate().
		Model((*attemptRow)(nil)).
		Set("finished_at = ?", finishedAt).
		Set("result = ?", string(raw)).
		Where("id = ?", attemptID).
		Where("finished_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("finish attempt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish attempt: %w", err)
	}
	if affected == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func (s *AttemptStore) ListByUser(ctx context.Context, userID string, filter app.AttemptFilter) ([]domain.Attempt, error) {
	var rows []attemptRow
	q := s.db.NewSelect().
		Model(&rows).
		Where("attempt.user_id = ?", userID).
		Order("started_at ASC")
	if filter.MissionID != "" {
		q = q.Where("attempt.mission_id = ?", filter.MissionID)
	}
	if filter.Level != 0 {
		q = q.Join("JOIN missions AS m ON m.id = attempt.mission_id").
			Where("m.level = ?", filter.Level)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	attempts := make([]domain.Attempt, 0, len(rows))
	for _, row := range rows {
		attempt, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, nil
}
