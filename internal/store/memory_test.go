package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impactpool/milestone-cli/internal/model"
)

func TestMemoryInsertAchievementIfAbsent(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	a := testAchievement("pool:clean-water-fund:5")

	created, existing, err := s.InsertAchievementIfAbsent(ctx, a)
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, existing)

	created, existing, err = s.InsertAchievementIfAbsent(ctx, a)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a.ID, existing.ID)
}

func TestMemoryInsertAchievementConcurrent(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	a := testAchievement("pool:clean-water-fund:10")

	var wg sync.WaitGroup
	createdCount := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, _, err := s.InsertAchievementIfAbsent(ctx, a)
			assert.NoError(t, err)
			createdCount <- created
		}()
	}
	wg.Wait()
	close(createdCount)

	var wins int
	for created := range createdCount {
		if created {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestMemoryListAchievementsOrderAndLimit(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		a := testAchievement(fmt.Sprintf("pool:a:%d", i))
		a.CreatedAt = base.Add(time.Duration(2-i) * time.Second)
		_, _, err := s.InsertAchievementIfAbsent(ctx, a)
		require.NoError(t, err)
	}

	all, err := s.ListAchievements(ctx, AchievementFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "pool:a:2", all[0].ID)

	limited, err := s.ListAchievements(ctx, AchievementFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMemoryMilestoneStateRoundTrip(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	got, err := s.GetMilestoneState(ctx, "alice", model.CategoryIndividual)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.PutMilestoneState(ctx, model.MilestoneState{
		Subject:       "alice",
		Category:      model.CategoryIndividual,
		HighWaterMark: 5,
		LastUpdated:   time.Now().UTC(),
	}))

	got, err = s.GetMilestoneState(ctx, "alice", model.CategoryIndividual)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 5.0, got.HighWaterMark)

	// Mutating the returned copy must not leak into the store.
	got.HighWaterMark = 999
	again, err := s.GetMilestoneState(ctx, "alice", model.CategoryIndividual)
	require.NoError(t, err)
	assert.Equal(t, 5.0, again.HighWaterMark)
}
