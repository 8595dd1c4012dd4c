// Package monitoring reports point-in-time health of the milestone system.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/impactpool/milestone-cli/internal/model"
	"github.com/impactpool/milestone-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Achievement counts by state.
	AchievementsTotal int `json:"achievements_total"`
	Claimable         int `json:"claimable"`
	Claimed           int `json:"claimed"`
	Minted            int `json:"minted"`
	Failed            int `json:"failed"`

	// Certificate delivery outcomes across minted records.
	Transferred       int `json:"transferred"`
	AwaitingTrustline int `json:"awaiting_trustline"`
	NotFrozen         int `json:"not_frozen"`

	// Pool totals.
	Pools          int     `json:"pools"`
	ActivePools    int     `json:"active_pools"`
	TotalDeposited float64 `json:"total_deposited"`
	TotalDonated   float64 `json:"total_donated"`

	CollectedAt time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store store.Store
}

func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of achievement and pool metrics.
func (c *Collector) Collect(ctx context.Context) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{CollectedAt: time.Now().UTC()}

	counts, err := c.store.CountAchievementsByState(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count achievements")
	}
	snap.Claimable = counts[model.StateClaimable]
	snap.Claimed = counts[model.StateClaimed]
	snap.Minted = counts[model.StateMinted]
	snap.Failed = counts[model.StateFailed]
	snap.AchievementsTotal = snap.Claimable + snap.Claimed + snap.Minted + snap.Failed

	minted, err := c.store.ListAchievements(ctx, store.AchievementFilter{State: model.StateMinted})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list minted")
	}
	for _, a := range minted {
		if a.Certificate == nil {
			continue
		}
		if a.Certificate.TransferSuccessful {
			snap.Transferred++
		}
		if a.Certificate.RequiresManualClaim {
			snap.AwaitingTrustline++
		}
		if !a.Certificate.IsNonTransferable {
			snap.NotFrozen++
		}
	}

	pools, err := c.store.ListPools(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list pools")
	}
	snap.Pools = len(pools)
	for _, p := range pools {
		if p.Active {
			snap.ActivePools++
		}
		snap.TotalDeposited += p.TotalDeposited
		snap.TotalDonated += p.TotalDonated
	}

	return snap, nil
}
