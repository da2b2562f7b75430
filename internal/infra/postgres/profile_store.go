package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"cybersensei-service/internal/domain"

	"github.com/uptrace/bun"
)

type profileRow struct {
	bun.BaseModel `bun:"table:profiles,alias:p"`

	ID       string `bun:"id,pk"`
	Username string `bun:"username"`
}

// ProfileStore persists learner profiles.
type ProfileStore struct {
	db *bun.DB
}

func NewProfileStore(db *bun.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// Ensure inserts the profile row only if absent, so repeated registration
// calls are harmless.
func (s *ProfileStore) Ensure(ctx context.Context, profile domain.Profile) error {
	row := profileRow{ID: profile.ID, Username: profile.Username}
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}
	return nil
}

func (s *ProfileStore) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	var row profileRow
	err := s.db.NewSelect().Model(&row).Where("p.id = ?", userID).Scan(ctx)
	if err == sql.ErrNoRows {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return domain.Profile{ID: row.ID, Username: row.Username}, nil
}

// Search matches usernames case-insensitively by substring, excluding the
// searcher.
func (s *ProfileStore) Search(ctx context.Context, query, excludeUserID string, limit int) ([]domain.Candidate, error) {
	var rows []profileRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("p.username ILIKE ?", "%"+query+"%").
		Where("p.id <> ?", excludeUserID).
		Order("username ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("search profiles: %w", err)
	}

	candidates := make([]domain.Candidate, 0, len(rows))
	for _, row := range rows {
		candidates = append(candidates, domain.Candidate{ID: row.ID, Username: row.Username})
	}
	return candidates, nil
}

// BadgeStore reads badge catalog membership.
type BadgeStore struct {
	db *bun.DB
}

func NewBadgeStore(db *bun.DB) *BadgeStore {
	return &BadgeStore{db: db}
}

func (s *BadgeStore) BadgesFor(ctx context.Context, userID string) ([]domain.Badge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.name, b.description, b.icon
		FROM user_badges ub
		JOIN badges b ON b.id = ub.badge_id
		WHERE ub.user_id = ?
		ORDER BY b.id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	defer rows.Close()

	var badges []domain.Badge
	for rows.Next() {
		var b domain.Badge
		if err := rows.Scan(&b.ID, &b.Name, &b.Description, &b.Icon); err != nil {
			return nil, fmt.Errorf("badge scan: %w", err)
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}
