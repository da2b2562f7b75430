package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"cybersensei-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// MissionLoader loads mission JSONB from Postgres. It sits behind the caching
// mission repositories.
type MissionLoader struct {
	pool *pgxpool.Pool
}

func NewMissionLoader(pool *pgxpool.Pool) *MissionLoader {
	return &MissionLoader{pool: pool}
}

func (l *MissionLoader) LoadMission(ctx context.Context, missionID string) (domain.Mission, error) {
	row := l.pool.QueryRow(ctx,
		`SELECT id, level, type, payload FROM missions WHERE id=$1`, missionID)
	mission, err := scanMission(row)
	if err == pgx.ErrNoRows {
		return domain.Mission{}, domain.ErrMissionNotFound
	}
	if err != nil {
		return domain.Mission{}, fmt.Errorf("load mission: %w", err)
	}
	return mission, nil
}

func (l *MissionLoader) LoadMissionsByLevel(ctx context.Context, level int) ([]domain.Mission, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, level, type, payload FROM missions WHERE level=$1 ORDER BY id ASC`, level)
	if err != nil {
		return nil, fmt.Errorf("load missions by level: %w", err)
	}
	defer rows.Close()
	return collectMissions(rows)
}

func (l *MissionLoader) LoadAllMissions(ctx context.Context) ([]domain.Mission, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, level, type, payload FROM missions ORDER BY level ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("load missions: %w", err)
	}
	defer rows.Close()
	return collectMissions(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMission(row rowScanner) (domain.Mission, error) {
	var (
		mission domain.Mission
		raw     []byte
	)
	if err := row.Scan(&mission.ID, &mission.Level, &mission.Type, &raw); err != nil {
		return domain.Mission{}, err
	}
	if err := json.Unmarshal(raw, &mission.Payload); err != nil {
		return domain.Mission{}, fmt.Errorf("unmarshal mission payload: %w", err)
	}
	return mission, nil
}

func collectMissions(rows pgx.Rows) ([]domain.Mission, error) {
	var missions []domain.Mission
	for rows.Next() {
		mission, err := scanMission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mission: %w", err)
		}
		missions = append(missions, mission)
	}
	return missions, rows.Err()
}
