package app

import (
	"context"
	"sort"

	"cybersensei-service/internal/catalog"
	"cybersensei-service/internal/domain"
)

// MissionRepository loads mission content (from cache/backing store).
type MissionRepository interface {
	GetMission(ctx context.Context, missionID string) (domain.Mission, error)
	MissionsByLevel(ctx context.Context, level int) ([]domain.Mission, error)
	ListMissions(ctx context.Context) ([]domain.Mission, error)
}

// ProgressionService derives which level is unlocked and which mission to
// present next. Nothing here is stored: the unlocked level is recomputed
// from the attempt ledger on every read.
type ProgressionService struct {
	missions MissionRepository
	attempts AttemptStore
	stats    StatsStore
	profiles ProfileStore
}

func NewProgressionService(missions MissionRepository, attempts AttemptStore, stats StatsStore, profiles ProfileStore) *ProgressionService {
	return &ProgressionService{missions: missions, attempts: attempts, stats: stats, profiles: profiles}
}

// UnlockedLevel returns one past the highest level the learner has completed.
// A learner with no correct attempts starts at level 1.
func (s *ProgressionService) UnlockedLevel(ctx context.Context, userID string) (int, error) {
	maxCompleted, err := s.stats.MaxCompletedLevel(ctx, userID)
	if err != nil {
		return 0, err
	}
	return maxCompleted + 1, nil
}

// Accessible reports whether the learner may play a mission at level.
func (s *ProgressionService) Accessible(ctx context.Context, userID string, level int) (bool, error) {
	unlocked, err := s.UnlockedLevel(ctx, userID)
	if err != nil {
		return false, err
	}
	return level <= unlocked, nil
}

// EnsureAccessible rejects access to a level above the unlocked one. The
// display layer disables locked buttons, but every side-effecting path must
// run this gate as well so level gates cannot be skipped.
func (s *ProgressionService) EnsureAccessible(ctx context.Context, userID string, level int) error {
	ok, err := s.Accessible(ctx, userID, level)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrLevelLocked
	}
	return nil
}

// NextMission picks the mission to present after completedID, preferring an
// uncompleted sibling at the same level, then the mission at the catalog's
// next target level. ErrPathComplete signals the learner has finished the
// available content.
func (s *ProgressionService) NextMission(ctx context.Context, userID, completedID string) (domain.Mission, error) {
	current, err := s.missions.GetMission(ctx, completedID)
	if err != nil {
		return domain.Mission{}, err
	}

	completed, err := s.completedMissionIDs(ctx, userID)
	if err != nil {
		return domain.Mission{}, err
	}
	// The caller just finished this mission; treat it as completed even if
	// the ledger read raced the finishing write.
	completed[current.ID] = struct{}{}

	siblings, err := s.missions.MissionsByLevel(ctx, current.Level)
	if err != nil {
		return domain.Mission{}, err
	}
	if next, ok := firstUncompleted(siblings, completed); ok {
		return next, nil
	}

	target := catalog.NextTarget(current.Level)
	candidates, err := s.missions.MissionsByLevel(ctx, target)
	if err != nil {
		return domain.Mission{}, err
	}
	if len(candidates) == 0 {
		return domain.Mission{}, domain.ErrPathComplete
	}
	sortMissions(candidates)
	return candidates[0], nil
}

// StageOverview groups a stage's missions for the level-select screen.
type StageOverview struct {
	Stage       domain.Stage     `json:"stage"`
	Missions    []domain.Mission `json:"missions"`
	TestMission *domain.Mission  `json:"testMission,omitempty"`
}

// Overview is everything the level-select screen needs in one read.
type Overview struct {
	Profile       domain.Profile  `json:"profile"`
	XP            int             `json:"xp"`
	UnlockedLevel int             `json:"unlockedLevel"`
	Stages        []StageOverview `json:"stages"`
}

// Overview assembles the mission map grouped by stage together with the
// learner's profile, XP, and unlocked level.
func (s *ProgressionService) Overview(ctx context.Context, userID string) (Overview, error) {
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return Overview{}, err
	}

	unlocked, err := s.UnlockedLevel(ctx, userID)
	if err != nil {
		return Overview{}, err
	}

	missions, err := s.missions.ListMissions(ctx)
	if err != nil {
		return Overview{}, err
	}
	sort.Slice(missions, func(i, j int) bool { return missions[i].Level < missions[j].Level })

	xp, err := s.stats.XP(ctx, userID)
	if err != nil {
		// Same partial-failure policy as the stats screen: the map still
		// renders when the counter read fails.
		xp = 0
	}

	var stages []StageOverview
	for _, stage := range catalog.Stages() {
		so := StageOverview{Stage: stage}
		for i := range missions {
			m := missions[i]
			switch {
			case m.Level >= stage.MinLevel && m.Level <= stage.MaxLevel:
				so.Missions = append(so.Missions, m)
			case m.Level == stage.TestLevel:
				so.TestMission = &missions[i]
			}
		}
		if len(so.Missions) == 0 && so.TestMission == nil {
			continue
		}
		stages = append(stages, so)
	}

	return Overview{
		Profile:       profile,
		XP:            xp,
		UnlockedLevel: unlocked,
		Stages:        stages,
	}, nil
}

func (s *ProgressionService) completedMissionIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	attempts, err := s.attempts.ListByUser(ctx, userID, AttemptFilter{})
	if err != nil {
		return nil, err
	}
	completed := make(map[string]struct{})
	for _, a := range attempts {
		if a.Result != nil && a.Result.Correct {
			completed[a.MissionID] = struct{}{}
		}
	}
	return completed, nil
}

func firstUncompleted(missions []domain.Mission, completed map[string]struct{}) (domain.Mission, bool) {
	sortMissions(missions)
	for _, m := range missions {
		if _, done := completed[m.ID]; !done {
			return m, true
		}
	}
	return domain.Mission{}, false
}

func sortMissions(missions []domain.Mission) {
	sort.Slice(missions, func(i, j int) bool { return missions[i].ID < missions[j].ID })
}
