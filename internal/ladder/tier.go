package ladder

import (
	"github.com/rotisserie/eris"

	"github.com/impactpool/milestone-cli/internal/model"
)

// Breakpoints define the tier cutoffs for one category. An amount below
// Silver classifies as bronze. Cutoffs are inclusive lower bounds.
type Breakpoints struct {
	Silver   float64 `yaml:"silver" mapstructure:"silver"`
	Gold     float64 `yaml:"gold" mapstructure:"gold"`
	Platinum float64 `yaml:"platinum" mapstructure:"platinum"`
}

func (b Breakpoints) validate() error {
	if b.Silver <= 0 || b.Gold <= b.Silver || b.Platinum <= b.Gold {
		return eris.Errorf("ladder: breakpoints must ascend: silver=%v gold=%v platinum=%v",
			b.Silver, b.Gold, b.Platinum)
	}
	return nil
}

// Classify maps a threshold amount to its tier. Deterministic and monotonic:
// a higher amount within a category never yields a lower tier.
func (d Definition) Classify(amount float64) model.Tier {
	b := d.Breakpoints
	switch {
	case amount >= b.Platinum:
		return model.TierPlatinum
	case amount >= b.Gold:
		return model.TierGold
	case amount >= b.Silver:
		return model.TierSilver
	default:
		return model.TierBronze
	}
}

// Default returns the built-in ladder configuration used when no file or
// Notion source is configured.
func Default() Config {
	return Config{
		Pool: Definition{
			Thresholds: []float64{0.05, 1, 5, 10, 50, 100, 500, 1000},
			Breakpoints: Breakpoints{
				Silver:   100,
				Gold:     500,
				Platinum: 1000,
			},
		},
		Individual: Definition{
			Thresholds: []float64{0.05, 1, 5, 10, 50, 100},
			Breakpoints: Breakpoints{
				Silver:   10,
				Gold:     50,
				Platinum: 100,
			},
		},
	}
}
