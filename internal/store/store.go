// Package store persists achievements, milestone states, and pools. Stores
// hold no lifecycle rules; the registry owns all state-transition logic and
// is the only writer.
package store

import (
	"context"

	"github.com/impactpool/milestone-cli/internal/model"
)

// AchievementFilter specifies criteria for listing achievements.
type AchievementFilter struct {
	Recipient string                 `json:"recipient,omitempty"`
	State     model.AchievementState `json:"state,omitempty"`
	Category  model.Category         `json:"category,omitempty"`
	Limit     int                    `json:"limit,omitempty"`
}

// Store is the persistence interface behind the achievement registry and the
// pool service. Get methods return (nil, nil) when the record is absent.
// InsertAchievementIfAbsent is atomic with respect to concurrent callers:
// exactly one of two racing inserts for the same id reports created = true.
type Store interface {
	// Achievements
	InsertAchievementIfAbsent(ctx context.Context, a model.ClaimableAchievement) (created bool, existing *model.ClaimableAchievement, err error)
	GetAchievement(ctx context.Context, id string) (*model.ClaimableAchievement, error)
	UpdateAchievement(ctx context.Context, a model.ClaimableAchievement) error
	ListAchievements(ctx context.Context, f AchievementFilter) ([]model.ClaimableAchievement, error)
	CountAchievementsByState(ctx context.Context) (map[model.AchievementState]int, error)

	// Milestone state
	GetMilestoneState(ctx context.Context, subject string, category model.Category) (*model.MilestoneState, error)
	PutMilestoneState(ctx context.Context, st model.MilestoneState) error

	// Pools
	InsertPool(ctx context.Context, p model.Pool) error
	GetPool(ctx context.Context, id string) (*model.Pool, error)
	ListPools(ctx context.Context) ([]model.Pool, error)
	UpdatePool(ctx context.Context, p model.Pool) error
	GetPosition(ctx context.Context, poolID, contributor string) (*model.Position, error)
	PutPosition(ctx context.Context, pos model.Position) error
	ListPositions(ctx context.Context, poolID string) ([]model.Position, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
