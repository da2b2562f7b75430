package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cybersensei-service/internal/domain"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const pgUniqueViolation = "23505"

type friendshipRow struct {
	bun.BaseModel `bun:"table:friendships,alias:f"`

	RequesterID string `bun:"requester_id,pk"`
	ReceiverID  string `bun:"receiver_id,pk"`
	Status      string `bun:"status"`
}

// FriendStore is the Postgres friendship graph. The unordered-pair unique
// index is the race-free duplicate guarantee; this store just translates the
// violation into the domain error.
type FriendStore struct {
	db    *bun.DB
	stats *StatsStore
}

func NewFriendStore(db *bun.DB, stats *StatsStore) *FriendStore {
	return &FriendStore{db: db, stats: stats}
}

func (s *FriendStore) InsertEdge(ctx context.Context, edge domain.FriendshipEdge) error {
	row := friendshipRow{
		RequesterID: edge.RequesterID,
		ReceiverID:  edge.ReceiverID,
		Status:      edge.Status,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.Field('C') == pgUniqueViolation {
			return domain.ErrDuplicateRequest
		}
		return fmt.Errorf("insert friendship: %w", err)
	}
	return nil
}

func (s *FriendStore) EdgeBetween(ctx context.Context, userID, otherID string) (domain.FriendshipEdge, bool, error) {
	var row friendshipRow
	err := s.db.NewSelect().
		Model(&row).
		Where("(f.requester_id = ? AND f.receiver_id = ?) OR (f.requester_id = ? AND f.receiver_id = ?)",
			userID, otherID, otherID, userID).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return domain.FriendshipEdge{}, false, nil
	}
	if err != nil {
		return domain.FriendshipEdge{}, false, fmt.Errorf("edge between: %w", err)
	}
	return domain.FriendshipEdge{
		RequesterID: row.RequesterID,
		ReceiverID:  row.ReceiverID,
		Status:      row.Status,
	}, true, nil
}

// Accept transitions pending -> accepted for the edge with exactly this
// direction; the receiver is the only party that may resolve a request.
func (s *FriendStore) Accept(ctx context.Context, requesterID, receiverID string) error {
	res, err := s.db.NewUpdate().
		Model((*friendshipRow)(nil)).
		Set("status = ?", domain.FriendshipAccepted).
		Where("requester_id = ?", requesterID).
		Where("receiver_id = ?", receiverID).
		Where("status = ?", domain.FriendshipPending).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("accept friendship: %w", err)
	}
	return requireAffected(res)
}

func (s *FriendStore) DeletePending(ctx context.Context, requesterID, receiverID string) error {
	res, err := s.db.NewDelete().
		Model((*friendshipRow)(nil)).
		Where("requester_id = ?", requesterID).
		Where("receiver_id = ?", receiverID).
		Where("status = ?", domain.FriendshipPending).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("decline friendship: %w", err)
	}
	return requireAffected(res)
}

// DeleteBetween removes the edge whichever side stored as requester.
func (s *FriendStore) DeleteBetween(ctx context.Context, userID, otherID string) error {
	res, err := s.db.NewDelete().
		Model((*friendshipRow)(nil)).
		Where("(requester_id = ? AND receiver_id = ?) OR (requester_id = ? AND receiver_id = ?)",
			userID, otherID, otherID, userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("remove friendship: %w", err)
	}
	return requireAffected(res)
}

func (s *FriendStore) RelationsFor(ctx context.Context, userID string) ([]domain.Relation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			CASE WHEN f.requester_id = ? THEN f.receiver_id ELSE f.requester_id END AS other_id,
			p.username,
			f.status,
			f.requester_id = ? AS is_requester
		FROM friendships f
		JOIN profiles p ON p.id = CASE WHEN f.requester_id = ? THEN f.receiver_id ELSE f.requester_id END
		WHERE f.requester_id = ? OR f.receiver_id = ?
		ORDER BY p.username ASC`,
		userID, userID, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	defer rows.Close()

	var relations []domain.Relation
	for rows.Next() {
		var rel domain.Relation
		if err := rows.Scan(&rel.UserID, &rel.Username, &rel.Status, &rel.IsRequester); err != nil {
			return nil, fmt.Errorf("relation scan: %w", err)
		}
		relations = append(relations, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Streaks for accepted friends power the profile screen's comparison.
	for i := range relations {
		if relations[i].Status != domain.FriendshipAccepted {
			continue
		}
		streak, err := s.stats.DailyStreak(ctx, relations[i].UserID)
		if err != nil {
			continue
		}
		relations[i].Streak = streak
	}
	return relations, nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrEdgeNotFound
	}
	return nil
}
