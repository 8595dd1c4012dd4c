package pool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impactpool/milestone-cli/internal/ladder"
	"github.com/impactpool/milestone-cli/internal/milestone"
	"github.com/impactpool/milestone-cli/internal/model"
	"github.com/impactpool/milestone-cli/internal/registry"
	"github.com/impactpool/milestone-cli/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st := store.NewMemory()
	reg := registry.New(st, nil)
	return NewService(st, milestone.NewOrchestrator(ladder.Default(), reg))
}

func createTestPool(t *testing.T, s *Service, pct int) *model.Pool {
	t.Helper()
	p, err := s.CreatePool(context.Background(), CreatePoolRequest{
		Name:        "Clean Water Fund",
		Charity:     "GCHARITY",
		DonationPct: pct,
		Creator:     "GCREATOR",
		Asset:       "USDC",
	})
	require.NoError(t, err)
	return p
}

func TestCreatePoolValidation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreatePoolRequest
	}{
		{"missing name", CreatePoolRequest{Charity: "GCHARITY", DonationPct: 10}},
		{"missing charity", CreatePoolRequest{Name: "x", DonationPct: 10}},
		{"pct over 100", CreatePoolRequest{Name: "x", Charity: "GCHARITY", DonationPct: 101}},
		{"negative pct", CreatePoolRequest{Name: "x", Charity: "GCHARITY", DonationPct: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreatePool(ctx, tt.req)
			assert.Error(t, err)
		})
	}
}

func TestDepositAndWithdraw(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	p := createTestPool(t, s, 10)

	pos, err := s.Deposit(ctx, p.ID, "GALICE", 100)
	require.NoError(t, err)
	assert.Equal(t, 100.0, pos.Balance())

	pos, err = s.Deposit(ctx, p.ID, "GALICE", 50)
	require.NoError(t, err)
	assert.Equal(t, 150.0, pos.Balance())

	got, err := s.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 150.0, got.TotalDeposited)

	pos, err = s.Withdraw(ctx, p.ID, "GALICE", 40)
	require.NoError(t, err)
	assert.Equal(t, 110.0, pos.Balance())

	_, err = s.Withdraw(ctx, p.ID, "GALICE", 500)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient balance")
}

func TestDepositRejectsNonPositive(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	p := createTestPool(t, s, 10)

	_, err := s.Deposit(ctx, p.ID, "GALICE", 0)
	assert.Error(t, err)
	_, err = s.Deposit(ctx, p.ID, "GALICE", -5)
	assert.Error(t, err)
}

func TestProcessYieldSplitsDonation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	p := createTestPool(t, s, 10)

	_, err := s.Deposit(ctx, p.ID, "GALICE", 300)
	require.NoError(t, err)
	_, err = s.Deposit(ctx, p.ID, "GBOB", 100)
	require.NoError(t, err)

	res, err := s.ProcessYield(ctx, p.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Donation)
	assert.Equal(t, 18.0, res.Retained)

	got, err := s.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 20.0, got.TotalYield)
	assert.Equal(t, 2.0, got.TotalDonated)

	alice, err := s.store.GetPosition(ctx, p.ID, "GALICE")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, alice.DonatedShare, 1e-9)
	bob, err := s.store.GetPosition(ctx, p.ID, "GBOB")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, bob.DonatedShare, 1e-9)
}

func TestProcessYieldTriggersMilestones(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	p := createTestPool(t, s, 50)

	_, err := s.Deposit(ctx, p.ID, "GALICE", 100)
	require.NoError(t, err)

	res, err := s.ProcessYield(ctx, p.ID, 12)
	require.NoError(t, err)
	assert.Equal(t, 6.0, res.Donation)

	// Pool crossed 0.05, 1 and 5; Alice's donated share of 6 crossed the
	// same individual thresholds.
	var poolCount, individualCount int
	for _, a := range res.NewAchievements {
		switch a.Category {
		case model.CategoryPool:
			poolCount++
			assert.Equal(t, "clean-water-fund", a.Subject)
			assert.Equal(t, "GCHARITY", a.Recipient)
		case model.CategoryIndividual:
			individualCount++
			assert.Equal(t, "GALICE@clean-water-fund", a.Subject)
			assert.Equal(t, "GALICE", a.Recipient)
		}
	}
	assert.Equal(t, 3, poolCount)
	assert.Equal(t, 3, individualCount)
}

func TestProcessYieldTracksSharesPerPool(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	first := createTestPool(t, s, 50)
	second, err := s.CreatePool(ctx, CreatePoolRequest{
		Name:        "Reef Restoration",
		Charity:     "GREEF",
		DonationPct: 50,
	})
	require.NoError(t, err)

	_, err = s.Deposit(ctx, first.ID, "GALICE", 100)
	require.NoError(t, err)
	_, err = s.Deposit(ctx, second.ID, "GALICE", 100)
	require.NoError(t, err)

	// A large share in the first pool must not suppress milestones for a
	// later, smaller share in the second.
	_, err = s.ProcessYield(ctx, first.ID, 20)
	require.NoError(t, err)

	res, err := s.ProcessYield(ctx, second.ID, 2)
	require.NoError(t, err)

	var subjects []string
	for _, a := range res.NewAchievements {
		if a.Category == model.CategoryIndividual {
			subjects = append(subjects, a.Subject)
		}
	}
	require.Len(t, subjects, 2) // crossed 0.05 and 1
	for _, sub := range subjects {
		assert.Equal(t, "GALICE@reef-restoration", sub)
	}
}

func TestProcessYieldZeroDonationPct(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	p := createTestPool(t, s, 0)

	_, err := s.Deposit(ctx, p.ID, "GALICE", 100)
	require.NoError(t, err)

	res, err := s.ProcessYield(ctx, p.ID, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Donation)
	assert.Equal(t, 10.0, res.Retained)
	assert.Empty(t, res.NewAchievements)
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Clean Water Fund", "clean-water-fund"},
		{"  Water 4 All!  ", "water-4-all"},
		{"already-slugged", "already-slugged"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slug(tt.in))
	}
}
