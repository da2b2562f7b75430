package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"cybersensei-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// MissionLoader fetches mission content from a backing store.
type MissionLoader interface {
	LoadMission(ctx context.Context, missionID string) (domain.Mission, error)
	LoadMissionsByLevel(ctx context.Context, level int) ([]domain.Mission, error)
	LoadAllMissions(ctx context.Context) ([]domain.Mission, error)
}

// MissionRepository caches missions with TTL to avoid repeated DB hits.
// Lookups by id and by level are cached independently.
type MissionRepository struct {
	loader MissionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu      sync.RWMutex
	byID    map[string]cachedMission
	byLevel map[int]cachedLevel
}

type cachedMission struct {
	mission   domain.Mission
	expiresAt time.Time
}

type cachedLevel struct {
	missions  []domain.Mission
	expiresAt time.Time
}

func NewMissionRepository(loader MissionLoader, ttl time.Duration) *MissionRepository {
	return &MissionRepository{
		loader:  loader,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		byID:    make(map[string]cachedMission),
		byLevel: make(map[int]cachedLevel),
	}
}

func (r *MissionRepository) GetMission(ctx context.Context, missionID string) (domain.Mission, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.byID[missionID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.mission, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do("id:"+missionID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.byID[missionID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.mission, nil
		}
		r.mu.RUnlock()

		mission, err := r.loader.LoadMission(ctx, missionID)
		if err != nil {
			return domain.Mission{}, err
		}

		r.mu.Lock()
		r.byID[missionID] = cachedMission{mission: mission, expiresAt: now.Add(r.ttlWithJitter())}
		r.mu.Unlock()
		return mission, nil
	})
	if err != nil {
		return domain.Mission{}, err
	}
	return result.(domain.Mission), nil
}

func (r *MissionRepository) MissionsByLevel(ctx context.Context, level int) ([]domain.Mission, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.byLevel[level]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.missions, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do("level:"+strconv.Itoa(level), func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.byLevel[level]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.missions, nil
		}
		r.mu.RUnlock()

		missions, err := r.loader.LoadMissionsByLevel(ctx, level)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.byLevel[level] = cachedLevel{missions: missions, expiresAt: now.Add(r.ttlWithJitter())}
		r.mu.Unlock()
		return missions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Mission), nil
}

// ListMissions always hits the loader; the overview screen reads it once per
// visit and the full catalog is cheap to fetch.
func (r *MissionRepository) ListMissions(ctx context.Context) ([]domain.Mission, error) {
	return r.loader.LoadAllMissions(ctx)
}

func (r *MissionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticMissionLoader is a loader backed by an in-memory map (useful for
// tests/demos).
type StaticMissionLoader struct {
	missions map[string]domain.Mission
}

func NewStaticMissionLoader(missions map[string]domain.Mission) *StaticMissionLoader {
	return &StaticMissionLoader{missions: missions}
}

func (l *StaticMissionLoader) LoadMission(_ context.Context, missionID string) (domain.Mission, error) {
	if m, ok := l.missions[missionID]; ok {
		return m, nil
	}
	return domain.Mission{}, domain.ErrMissionNotFound
}

func (l *StaticMissionLoader) LoadMissionsByLevel(_ context.Context, level int) ([]domain.Mission, error) {
	var out []domain.Mission
	for _, m := range l.missions {
		if m.Level == level {
			out = append(out, m)
		}
	}
	return out, nil
}

func (l *StaticMissionLoader) LoadAllMissions(_ context.Context) ([]domain.Mission, error) {
	out := make([]domain.Mission, 0, len(l.missions))
	for _, m := range l.missions {
		out = append(out, m)
	}
	return out, nil
}
