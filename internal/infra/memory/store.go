// Package memory provides in-process store implementations used by tests and
// by demo mode when no Postgres URL is configured.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"cybersensei-service/internal/app"
	"cybersensei-service/internal/domain"
)

// Store is a mutex-guarded implementation of every store port. AddXP is
// atomic under the lock, matching the contract the Postgres store satisfies
// with a server-side increment.
type Store struct {
	mu          sync.RWMutex
	now         func() time.Time
	missions    map[string]domain.Mission
	attempts    map[string]domain.Attempt
	xp          map[string]int
	edges       []domain.FriendshipEdge
	profiles    map[string]domain.Profile
	badges      map[string]domain.Badge
	memberships map[string][]string
}

func NewStore() *Store {
	return &Store{
		now:         time.Now,
		missions:    make(map[string]domain.Mission),
		attempts:    make(map[string]domain.Attempt),
		xp:          make(map[string]int),
		profiles:    make(map[string]domain.Profile),
		badges:      make(map[string]domain.Badge),
		memberships: make(map[string][]string),
	}
}

// WithClock is test-only for deterministic streak and playtime math.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// AddMission seeds mission content.
func (s *Store) AddMission(m domain.Mission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missions[m.ID] = m
}

// AddBadge seeds a badge and GrantBadge records membership.
func (s *Store) AddBadge(b domain.Badge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.badges[b.ID] = b
}

func (s *Store) GrantBadge(userID, badgeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships[userID] = append(s.memberships[userID], badgeID)
}

// --- app.MissionRepository ---

func (s *Store) GetMission(_ context.Context, missionID string) (domain.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.missions[missionID]; ok {
		return m, nil
	}
	return domain.Mission{}, domain.ErrMissionNotFound
}

func (s *Store) MissionsByLevel(_ context.Context, level int) ([]domain.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Mission
	for _, m := range s.missions {
		if m.Level == level {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListMissions(_ context.Context) ([]domain.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Mission, 0, len(s.missions))
	for _, m := range s.missions {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// --- app.AttemptStore ---

func (s *Store) Insert(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attempt.ID] = attempt
	return nil
}

func (s *Store) Get(_ context.Context, attemptID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.attempts[attemptID]; ok {
		return a, nil
	}
	return domain.Attempt{}, domain.ErrAttemptNotFound
}

func (s *Store) Finish(_ context.Context, attemptID string, finishedAt time.Time, result domain.AttemptResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok || attempt.Result != nil {
		return domain.ErrAttemptNotFound
	}
	attempt.FinishedAt = &finishedAt
	attempt.Result = &result
	s.attempts[attemptID] = attempt
	return nil
}

func (s *Store) ListByUser(_ context.Context, userID string, filter app.AttemptFilter) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Attempt
	for _, a := range s.attempts {
		if a.UserID != userID {
			continue
		}
		if filter.MissionID != "" && a.MissionID != filter.MissionID {
			continue
		}
		if filter.Level != 0 {
			m, ok := s.missions[a.MissionID]
			if !ok || m.Level != filter.Level {
				continue
			}
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// --- app.StatsStore ---

func (s *Store) AddXP(_ context.Context, userID string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.xp[userID] += amount
	return nil
}

func (s *Store) XP(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.xp[userID], nil
}

func (s *Store) MaxCompletedLevel(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := 0
	for _, a := range s.attempts {
		if a.UserID != userID || a.Result == nil || !a.Result.Correct {
			continue
		}
		if m, ok := s.missions[a.MissionID]; ok && m.Level > max {
			max = m.Level
		}
	}
	return max, nil
}

func (s *Store) DailyStreak(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	days := make(map[string]struct{})
	for _, a := range s.attempts {
		if a.UserID == userID && a.FinishedAt != nil {
			days[a.FinishedAt.Format("2006-01-02")] = struct{}{}
		}
	}
	if len(days) == 0 {
		return 0, nil
	}

	// Walk backwards from today; a streak broken yesterday still counts the
	// days up to the gap as zero.
	streak := 0
	day := s.now()
	if _, ok := days[day.Format("2006-01-02")]; !ok {
		day = day.AddDate(0, 0, -1)
	}
	for {
		if _, ok := days[day.Format("2006-01-02")]; !ok {
			break
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak, nil
}

func (s *Store) PlaytimeMinutes(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total time.Duration
	for _, a := range s.attempts {
		if a.UserID == userID && a.FinishedAt != nil {
			total += a.FinishedAt.Sub(a.StartedAt)
		}
	}
	return int(total.Minutes()), nil
}

func (s *Store) TopByXP(_ context.Context, limit int) ([]domain.BoardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]domain.BoardEntry, 0, len(s.xp))
	for userID, xp := range s.xp {
		entry := domain.BoardEntry{UserID: userID, XP: xp}
		if p, ok := s.profiles[userID]; ok {
			entry.Username = p.Username
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].XP != entries[j].XP {
			return entries[i].XP > entries[j].XP
		}
		return entries[i].Username < entries[j].Username
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// --- app.FriendStore ---

func (s *Store) InsertEdge(_ context.Context, edge domain.FriendshipEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.edges {
		if samePair(e, edge.RequesterID, edge.ReceiverID) {
			return domain.ErrDuplicateRequest
		}
	}
	s.edges = append(s.edges, edge)
	return nil
}

func (s *Store) EdgeBetween(_ context.Context, userID, otherID string) (domain.FriendshipEdge, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.edges {
		if samePair(e, userID, otherID) {
			return e, true, nil
		}
	}
	return domain.FriendshipEdge{}, false, nil
}

func (s *Store) Accept(_ context.Context, requesterID, receiverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.edges {
		if e.RequesterID == requesterID && e.ReceiverID == receiverID && e.Status == domain.FriendshipPending {
			s.edges[i].Status = domain.FriendshipAccepted
			return nil
		}
	}
	return domain.ErrEdgeNotFound
}

func (s *Store) DeletePending(_ context.Context, requesterID, receiverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.edges {
		if e.RequesterID == requesterID && e.ReceiverID == receiverID && e.Status == domain.FriendshipPending {
			s.edges = append(s.edges[:i], s.edges[i+1:]...)
			return nil
		}
	}
	return domain.ErrEdgeNotFound
}

func (s *Store) DeleteBetween(_ context.Context, userID, otherID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.edges {
		if samePair(e, userID, otherID) {
			s.edges = append(s.edges[:i], s.edges[i+1:]...)
			return nil
		}
	}
	return domain.ErrEdgeNotFound
}

func (s *Store) RelationsFor(ctx context.Context, userID string) ([]domain.Relation, error) {
	s.mu.RLock()
	edges := make([]domain.FriendshipEdge, 0, len(s.edges))
	for _, e := range s.edges {
		if e.RequesterID == userID || e.ReceiverID == userID {
			edges = append(edges, e)
		}
	}
	s.mu.RUnlock()

	relations := make([]domain.Relation, 0, len(edges))
	for _, e := range edges {
		otherID := e.ReceiverID
		isRequester := true
		if e.ReceiverID == userID {
			otherID = e.RequesterID
			isRequester = false
		}
		rel := domain.Relation{
			UserID:      otherID,
			Status:      e.Status,
			IsRequester: isRequester,
		}
		s.mu.RLock()
		if p, ok := s.profiles[otherID]; ok {
			rel.Username = p.Username
		}
		s.mu.RUnlock()
		streak, _ := s.DailyStreak(ctx, otherID)
		rel.Streak = streak
		relations = append(relations, rel)
	}
	sort.Slice(relations, func(i, j int) bool { return relations[i].UserID < relations[j].UserID })
	return relations, nil
}

func samePair(e domain.FriendshipEdge, a, b string) bool {
	return (e.RequesterID == a && e.ReceiverID == b) || (e.RequesterID == b && e.ReceiverID == a)
}

// --- app.ProfileStore ---

func (s *Store) Ensure(_ context.Context, profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.ID]; ok {
		return nil
	}
	s.profiles[profile.ID] = profile
	return nil
}

func (s *Store) GetProfile(_ context.Context, userID string) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[userID]; ok {
		return p, nil
	}
	return domain.Profile{}, domain.ErrProfileNotFound
}

func (s *Store) Search(_ context.Context, query, excludeUserID string, limit int) ([]domain.Candidate, error) {
	needle := strings.ToLower(query)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Candidate
	for _, p := range s.profiles {
		if p.ID == excludeUserID {
			continue
		}
		if strings.Contains(strings.ToLower(p.Username), needle) {
			out = append(out, domain.Candidate{ID: p.ID, Username: p.Username})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- app.BadgeStore ---

func (s *Store) BadgesFor(_ context.Context, userID string) ([]domain.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Badge
	for _, id := range s.memberships[userID] {
		if b, ok := s.badges[id]; ok {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
