// Package milestone detects newly crossed giving thresholds and turns
// them into claimable achievements.
package milestone

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/impactpool/milestone-cli/internal/ladder"
	"github.com/impactpool/milestone-cli/internal/model"
	"github.com/impactpool/milestone-cli/internal/registry"
)

// TotalReport carries a new cumulative total for a subject along with the
// descriptive context used to build achievement metadata.
type TotalReport struct {
	Subject   string                    `json:"subject"`
	Category  model.Category            `json:"category"`
	NewTotal  float64                   `json:"new_total"`
	Recipient string                    `json:"recipient"`
	Metadata  model.AchievementMetadata `json:"metadata"`
}

// Orchestrator is the entry point invoked whenever a new cumulative total
// is known for a subject.
type Orchestrator struct {
	ladders  ladder.Config
	registry *registry.Registry
}

func NewOrchestrator(ladders ladder.Config, reg *registry.Registry) *Orchestrator {
	return &Orchestrator{ladders: ladders, registry: reg}
}

// OnNewTotal evaluates the subject's ladder against its high-water mark and
// registers an achievement for every newly crossed threshold. It returns
// only the achievements created by this call; thresholds already awarded,
// here or in a concurrent call, are silently skipped.
func (o *Orchestrator) OnNewTotal(ctx context.Context, rep TotalReport) ([]model.ClaimableAchievement, error) {
	if !rep.Category.Valid() {
		return nil, eris.Errorf("milestone: unknown category %q", rep.Category)
	}
	if rep.Subject == "" {
		return nil, eris.New("milestone: subject is required")
	}

	def, err := o.ladders.ForCategory(rep.Category)
	if err != nil {
		return nil, eris.Wrap(err, "milestone: resolve ladder")
	}

	hwm, err := o.registry.HighWaterMark(ctx, rep.Subject, rep.Category)
	if err != nil {
		return nil, err
	}

	crossed := ladder.Evaluate(def.Thresholds, hwm, rep.NewTotal)
	if len(crossed) == 0 {
		return nil, nil
	}

	var created []model.ClaimableAchievement
	for _, threshold := range crossed {
		candidate := model.ClaimableAchievement{
			ID:        model.AchievementID(rep.Category, rep.Subject, threshold),
			Category:  rep.Category,
			Subject:   rep.Subject,
			Recipient: rep.Recipient,
			Threshold: threshold,
			Tier:      def.Classify(threshold),
			Metadata:  rep.Metadata,
		}

		wasCreated, rec, err := o.registry.RegisterIfAbsent(ctx, candidate)
		if err != nil {
			return created, eris.Wrapf(err, "milestone: register threshold %s", model.FormatAmount(threshold))
		}
		if !wasCreated {
			continue
		}

		if err := o.registry.AdvanceHighWaterMark(ctx, rep.Subject, rep.Category, threshold); err != nil {
			return created, err
		}
		created = append(created, *rec)
	}

	zap.L().Info("milestones evaluated",
		zap.String("subject", rep.Subject),
		zap.String("category", string(rep.Category)),
		zap.Float64("new_total", rep.NewTotal),
		zap.Int("crossed", len(crossed)),
		zap.Int("created", len(created)))

	return created, nil
}
