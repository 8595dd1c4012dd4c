package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/impactpool/milestone-cli/internal/model"
)

// MemoryStore is the in-memory Store used for tests and single-process dev
// runs. All methods are safe for concurrent use.
type MemoryStore struct {
	mu           sync.RWMutex
	achievements map[string]model.ClaimableAchievement
	milestones   map[milestoneKey]model.MilestoneState
	pools        map[string]model.Pool
	positions    map[positionKey]model.Position
}

type milestoneKey struct {
	subject  string
	category model.Category
}

type positionKey struct {
	poolID      string
	contributor string
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		achievements: make(map[string]model.ClaimableAchievement),
		milestones:   make(map[milestoneKey]model.MilestoneState),
		pools:        make(map[string]model.Pool),
		positions:    make(map[positionKey]model.Position),
	}
}

func (s *MemoryStore) InsertAchievementIfAbsent(ctx context.Context, a model.ClaimableAchievement) (bool, *model.ClaimableAchievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.achievements[a.ID]; ok {
		out := existing
		return false, &out, nil
	}
	s.achievements[a.ID] = a
	out := a
	return true, &out, nil
}

func (s *MemoryStore) GetAchievement(ctx context.Context, id string) (*model.ClaimableAchievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.achievements[id]
	if !ok {
		return nil, nil
	}
	out := a
	return &out, nil
}

func (s *MemoryStore) UpdateAchievement(ctx context.Context, a model.ClaimableAchievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.achievements[a.ID]; !ok {
		return eris.Errorf("memory: achievement %s not found", a.ID)
	}
	s.achievements[a.ID] = a
	return nil
}

func (s *MemoryStore) ListAchievements(ctx context.Context, f AchievementFilter) ([]model.ClaimableAchievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.ClaimableAchievement
	for _, a := range s.achievements {
		if f.Recipient != "" && a.Recipient != f.Recipient {
			continue
		}
		if f.State != "" && a.State != f.State {
			continue
		}
		if f.Category != "" && a.Category != f.Category {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) CountAchievementsByState(ctx context.Context) (map[model.AchievementState]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[model.AchievementState]int)
	for _, a := range s.achievements {
		counts[a.State]++
	}
	return counts, nil
}

func (s *MemoryStore) GetMilestoneState(ctx context.Context, subject string, category model.Category) (*model.MilestoneState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.milestones[milestoneKey{subject, category}]
	if !ok {
		return nil, nil
	}
	out := st
	return &out, nil
}

func (s *MemoryStore) PutMilestoneState(ctx context.Context, st model.MilestoneState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.milestones[milestoneKey{st.Subject, st.Category}] = st
	return nil
}

func (s *MemoryStore) InsertPool(ctx context.Context, p model.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pools[p.ID]; ok {
		return eris.Errorf("memory: pool %s already exists", p.ID)
	}
	s.pools[p.ID] = p
	return nil
}

func (s *MemoryStore) GetPool(ctx context.Context, id string) (*model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pools[id]
	if !ok {
		return nil, nil
	}
	out := p
	return &out, nil
}

func (s *MemoryStore) ListPools(ctx context.Context) ([]model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Pool, 0, len(s.pools))
	for _, p := range s.pools {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpdatePool(ctx context.Context, p model.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pools[p.ID]; !ok {
		return eris.Errorf("memory: pool %s not found", p.ID)
	}
	s.pools[p.ID] = p
	return nil
}

func (s *MemoryStore) GetPosition(ctx context.Context, poolID, contributor string) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.positions[positionKey{poolID, contributor}]
	if !ok {
		return nil, nil
	}
	out := pos
	return &out, nil
}

func (s *MemoryStore) PutPosition(ctx context.Context, pos model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions[positionKey{pos.PoolID, pos.Contributor}] = pos
	return nil
}

func (s *MemoryStore) ListPositions(ctx context.Context, poolID string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Position
	for key, pos := range s.positions {
		if key.poolID == poolID {
			out = append(out, pos)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Contributor < out[j].Contributor })
	return out, nil
}

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
