// Package pool manages donation pools: deposits, withdrawals, and yield
// processing. A pool keeps contributor principal intact and donates a
// configured share of generated yield to its charity; those donations are
// what drive milestone detection.
package pool

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/impactpool/milestone-cli/internal/milestone"
	"github.com/impactpool/milestone-cli/internal/model"
	"github.com/impactpool/milestone-cli/internal/store"
)

// Service coordinates pool state with milestone detection.
type Service struct {
	store store.Store
	orch  *milestone.Orchestrator
}

func NewService(st store.Store, orch *milestone.Orchestrator) *Service {
	return &Service{store: st, orch: orch}
}

// CreatePoolRequest carries the parameters for a new pool.
type CreatePoolRequest struct {
	Name        string `json:"name"`
	Charity     string `json:"charity"`
	DonationPct int    `json:"donation_pct"`
	Creator     string `json:"creator"`
	Asset       string `json:"asset"`
}

func (s *Service) CreatePool(ctx context.Context, req CreatePoolRequest) (*model.Pool, error) {
	if req.Name == "" {
		return nil, eris.New("pool: name is required")
	}
	if req.Charity == "" {
		return nil, eris.New("pool: charity is required")
	}
	if req.DonationPct < 0 || req.DonationPct > 100 {
		return nil, eris.Errorf("pool: donation percentage %d out of range [0, 100]", req.DonationPct)
	}

	now := time.Now().UTC()
	p := model.Pool{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Charity:     req.Charity,
		DonationPct: req.DonationPct,
		Creator:     req.Creator,
		Asset:       req.Asset,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.InsertPool(ctx, p); err != nil {
		return nil, eris.Wrap(err, "pool: create")
	}

	zap.L().Info("pool created",
		zap.String("id", p.ID),
		zap.String("name", p.Name),
		zap.Int("donation_pct", p.DonationPct))
	return &p, nil
}

func (s *Service) GetPool(ctx context.Context, id string) (*model.Pool, error) {
	p, err := s.store.GetPool(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, eris.Errorf("pool: %s not found", id)
	}
	return p, nil
}

func (s *Service) ListPools(ctx context.Context) ([]model.Pool, error) {
	return s.store.ListPools(ctx)
}

// Deposit adds principal to a contributor's position. Amounts must be
// positive and the pool must be active.
func (s *Service) Deposit(ctx context.Context, poolID, contributor string, amount float64) (*model.Position, error) {
	if amount <= 0 {
		return nil, eris.Errorf("pool: deposit amount must be positive, got %s", model.FormatAmount(amount))
	}

	p, err := s.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, eris.Errorf("pool: %s is not active", poolID)
	}

	pos, err := s.store.GetPosition(ctx, poolID, contributor)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &model.Position{PoolID: poolID, Contributor: contributor}
	}

	now := time.Now().UTC()
	pos.Deposited += amount
	pos.UpdatedAt = now
	if err := s.store.PutPosition(ctx, *pos); err != nil {
		return nil, eris.Wrap(err, "pool: record deposit")
	}

	p.TotalDeposited += amount
	p.UpdatedAt = now
	if err := s.store.UpdatePool(ctx, *p); err != nil {
		return nil, eris.Wrap(err, "pool: update totals")
	}

	zap.L().Info("deposit recorded",
		zap.String("pool", poolID),
		zap.String("contributor", contributor),
		zap.Float64("amount", amount))
	return pos, nil
}

// Withdraw removes principal from a contributor's position, up to the
// position's current balance.
func (s *Service) Withdraw(ctx context.Context, poolID, contributor string, amount float64) (*model.Position, error) {
	if amount <= 0 {
		return nil, eris.Errorf("pool: withdrawal amount must be positive, got %s", model.FormatAmount(amount))
	}

	p, err := s.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}

	pos, err := s.store.GetPosition(ctx, poolID, contributor)
	if err != nil {
		return nil, err
	}
	if pos == nil || pos.Balance() < amount {
		return nil, eris.Errorf("pool: insufficient balance for withdrawal of %s", model.FormatAmount(amount))
	}

	now := time.Now().UTC()
	pos.Withdrawn += amount
	pos.UpdatedAt = now
	if err := s.store.PutPosition(ctx, *pos); err != nil {
		return nil, eris.Wrap(err, "pool: record withdrawal")
	}

	p.TotalDeposited -= amount
	p.UpdatedAt = now
	if err := s.store.UpdatePool(ctx, *p); err != nil {
		return nil, eris.Wrap(err, "pool: update totals")
	}
	return pos, nil
}

// YieldResult reports how a yield amount was split and which achievements
// the resulting donations unlocked.
type YieldResult struct {
	Donation        float64                     `json:"donation"`
	Retained        float64                     `json:"retained"`
	NewAchievements []model.ClaimableAchievement `json:"new_achievements"`
}

// ProcessYield splits a yield amount between the charity and the pool per
// the pool's donation percentage, credits each contributor's donated share
// proportionally to their balance, and runs milestone detection for the
// pool and every contributor.
func (s *Service) ProcessYield(ctx context.Context, poolID string, yield float64) (*YieldResult, error) {
	if yield <= 0 {
		return nil, eris.Errorf("pool: yield must be positive, got %s", model.FormatAmount(yield))
	}

	p, err := s.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}

	donation := yield * float64(p.DonationPct) / 100
	retained := yield - donation

	now := time.Now().UTC()
	p.TotalYield += yield
	p.TotalDonated += donation
	p.UpdatedAt = now
	if err := s.store.UpdatePool(ctx, *p); err != nil {
		return nil, eris.Wrap(err, "pool: update yield totals")
	}

	positions, err := s.store.ListPositions(ctx, poolID)
	if err != nil {
		return nil, err
	}
	var totalBalance float64
	for _, pos := range positions {
		totalBalance += pos.Balance()
	}

	result := &YieldResult{Donation: donation, Retained: retained}

	if donation > 0 {
		created, err := s.orch.OnNewTotal(ctx, milestone.TotalReport{
			Subject:   Slug(p.Name),
			Category:  model.CategoryPool,
			NewTotal:  p.TotalDonated,
			Recipient: p.Charity,
			Metadata: model.AchievementMetadata{
				PoolName:    p.Name,
				CharityName: p.Charity,
			},
		})
		if err != nil {
			return nil, err
		}
		result.NewAchievements = append(result.NewAchievements, created...)
	}

	for i := range positions {
		pos := &positions[i]
		if totalBalance <= 0 || pos.Balance() <= 0 || donation <= 0 {
			continue
		}
		share := donation * pos.Balance() / totalBalance
		pos.DonatedShare += share
		pos.UpdatedAt = now
		if err := s.store.PutPosition(ctx, *pos); err != nil {
			return nil, eris.Wrap(err, "pool: credit donated share")
		}

		// Shares accrue per pool, so the milestone subject is scoped to
		// the pool as well; a contributor active in several pools earns
		// each pool's ladder independently.
		created, err := s.orch.OnNewTotal(ctx, milestone.TotalReport{
			Subject:   pos.Contributor + "@" + Slug(p.Name),
			Category:  model.CategoryIndividual,
			NewTotal:  pos.DonatedShare,
			Recipient: pos.Contributor,
			Metadata: model.AchievementMetadata{
				PoolName:         p.Name,
				CharityName:      p.Charity,
				ContributorAlias: pos.Contributor,
			},
		})
		if err != nil {
			return nil, err
		}
		result.NewAchievements = append(result.NewAchievements, created...)
	}

	zap.L().Info("yield processed",
		zap.String("pool", poolID),
		zap.Float64("yield", yield),
		zap.Float64("donation", donation),
		zap.Int("new_achievements", len(result.NewAchievements)))
	return result, nil
}

// Slug normalizes a pool name into the subject form used for milestone
// tracking and achievement ids.
func Slug(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteRune('-')
			lastDash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
