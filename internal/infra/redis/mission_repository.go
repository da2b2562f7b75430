// Package redis caches mission content in Redis in front of the Postgres
// loader so hot quiz payloads never hit the database on the answer path.
package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	"cybersensei-service/internal/domain"
	"cybersensei-service/internal/infra/memory"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// MissionRepository stores whole missions as JSON:
//
//	SET mission:{id}        {json}
//	SET mission:level:{lvl} {json array}
//
// and falls back to the loader on cache miss.
type MissionRepository struct {
	client *redis.Client
	loader memory.MissionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewMissionRepository(client *redis.Client, loader memory.MissionLoader, ttl time.Duration) *MissionRepository {
	return &MissionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *MissionRepository) GetMission(ctx context.Context, missionID string) (domain.Mission, error) {
	key := r.missionKey(missionID)

	if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
		var mission domain.Mission
		if err := json.Unmarshal(raw, &mission); err == nil {
			return mission, nil
		}
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
			var mission domain.Mission
			if err := json.Unmarshal(raw, &mission); err == nil {
				return mission, nil
			}
		}

		mission, err := r.loader.LoadMission(ctx, missionID)
		if err != nil {
			return domain.Mission{}, err
		}
		r.cacheJSON(ctx, key, mission)
		return mission, nil
	})
	if err != nil {
		return domain.Mission{}, err
	}
	return result.(domain.Mission), nil
}

func (r *MissionRepository) MissionsByLevel(ctx context.Context, level int) ([]domain.Mission, error) {
	key := r.levelKey(level)

	if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
		var missions []domain.Mission
		if err := json.Unmarshal(raw, &missions); err == nil {
			return missions, nil
		}
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
			var missions []domain.Mission
			if err := json.Unmarshal(raw, &missions); err == nil {
				return missions, nil
			}
		}

		missions, err := r.loader.LoadMissionsByLevel(ctx, level)
		if err != nil {
			return nil, err
		}
		r.cacheJSON(ctx, key, missions)
		return missions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Mission), nil
}

// ListMissions bypasses the cache; the overview read is infrequent and wants
// the authoritative catalog.
func (r *MissionRepository) ListMissions(ctx context.Context) ([]domain.Mission, error) {
	return r.loader.LoadAllMissions(ctx)
}

func (r *MissionRepository) cacheJSON(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	// best-effort: a failed cache write only costs the next reader a DB hit
	_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
}

func (r *MissionRepository) missionKey(missionID string) string {
	return "mission:" + missionID
}

func (r *MissionRepository) levelKey(level int) string {
	return "mission:level:" + strconv.Itoa(level)
}

func (r *MissionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
