package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impactpool/milestone-cli/internal/model"
	"github.com/impactpool/milestone-cli/internal/store"
)

func TestCollect(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()

	add := func(id string, state model.AchievementState, cert *model.IssuedCertificate) {
		_, _, err := st.InsertAchievementIfAbsent(ctx, model.ClaimableAchievement{
			ID:          id,
			Category:    model.CategoryPool,
			Subject:     "fund",
			Recipient:   "GRECIPIENT",
			State:       state,
			CreatedAt:   time.Now().UTC(),
			Certificate: cert,
		})
		require.NoError(t, err)
	}

	add("pool:fund:1", model.StateClaimable, nil)
	add("pool:fund:5", model.StateFailed, nil)
	add("pool:fund:10", model.StateMinted, &model.IssuedCertificate{
		TransferSuccessful: true,
		IsNonTransferable:  true,
	})
	add("pool:fund:50", model.StateMinted, &model.IssuedCertificate{
		RequiresManualClaim: true,
		IsNonTransferable:   true,
	})

	require.NoError(t, st.InsertPool(ctx, model.Pool{
		ID: "pool-1", Name: "Fund", Active: true,
		TotalDeposited: 500, TotalDonated: 60,
	}))
	require.NoError(t, st.InsertPool(ctx, model.Pool{
		ID: "pool-2", Name: "Closed", Active: false,
		TotalDeposited: 100, TotalDonated: 10,
	}))

	snap, err := NewCollector(st).Collect(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.AchievementsTotal)
	assert.Equal(t, 1, snap.Claimable)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 2, snap.Minted)
	assert.Equal(t, 1, snap.Transferred)
	assert.Equal(t, 1, snap.AwaitingTrustline)
	assert.Zero(t, snap.NotFrozen)
	assert.Equal(t, 2, snap.Pools)
	assert.Equal(t, 1, snap.ActivePools)
	assert.Equal(t, 600.0, snap.TotalDeposited)
	assert.Equal(t, 70.0, snap.TotalDonated)
}
