package app

import (
	"context"
	"log"
	"sync"
	"time"

	"cybersensei-service/internal/domain"
)

const defaultBoardSize = 10

// Scoreboard serves the XP top-N and fans out fresh snapshots to live
// subscribers whenever XP is awarded.
type Scoreboard struct {
	stats StatsStore
	limit int
	now   func() time.Time

	mu          sync.Mutex
	subscribers map[chan domain.Board]struct{}
}

func NewScoreboard(stats StatsStore) *Scoreboard {
	return &Scoreboard{
		stats:       stats,
		limit:       defaultBoardSize,
		now:         time.Now,
		subscribers: make(map[chan domain.Board]struct{}),
	}
}

// Top reads the current board from the store.
func (b *Scoreboard) Top(ctx context.Context) (domain.Board, error) {
	entries, err := b.stats.TopByXP(ctx, b.limit)
	if err != nil {
		return domain.Board{}, err
	}
	return domain.Board{Entries: entries, UpdatedAt: b.now()}, nil
}

// Subscribe returns a channel that receives board updates, primed with the
// current snapshot. The caller must invoke the returned cancel function to
// avoid leaks.
func (b *Scoreboard) Subscribe(ctx context.Context) (<-chan domain.Board, func(), error) {
	initial, err := b.Top(ctx)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan domain.Board, 8)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	ch <- initial

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel, nil
}

// Refresh recomputes the board and pushes it to every subscriber. Slow
// consumers have their stale snapshot dropped rather than blocking the rest.
func (b *Scoreboard) Refresh(ctx context.Context) {
	b.mu.Lock()
	empty := len(b.subscribers) == 0
	b.mu.Unlock()
	if empty {
		return
	}

	board, err := b.Top(ctx)
	if err != nil {
		log.Printf("scoreboard: refresh failed: %v", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- board:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- board
		}
	}
}
