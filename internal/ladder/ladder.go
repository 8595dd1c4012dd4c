// Package ladder holds the threshold ladder evaluator and tier classifier.
// Everything here is pure: ladders are immutable configuration and both
// Evaluate and Classify are side-effect free.
package ladder

import (
	"github.com/rotisserie/eris"

	"github.com/impactpool/milestone-cli/internal/model"
)

// Definition is one category's ladder plus its tier breakpoints.
type Definition struct {
	Thresholds  []float64   `yaml:"thresholds" mapstructure:"thresholds"`
	Breakpoints Breakpoints `yaml:"breakpoints" mapstructure:"breakpoints"`
}

// Config holds the ladder definitions for every category.
type Config struct {
	Pool       Definition `yaml:"pool" mapstructure:"pool"`
	Individual Definition `yaml:"individual" mapstructure:"individual"`
}

// ForCategory returns the definition for the given category.
// Unknown categories are a programmer error.
func (c Config) ForCategory(cat model.Category) (Definition, error) {
	switch cat {
	case model.CategoryPool:
		return c.Pool, nil
	case model.CategoryIndividual:
		return c.Individual, nil
	default:
		return Definition{}, eris.Errorf("ladder: unknown category %q", cat)
	}
}

// Validate checks the ladder precondition: strictly ascending positive
// amounts. Callers load ladders once at startup and fail fast on violation.
func (d Definition) Validate() error {
	if len(d.Thresholds) == 0 {
		return eris.New("ladder: empty threshold list")
	}
	prev := 0.0
	for i, t := range d.Thresholds {
		if t <= 0 {
			return eris.Errorf("ladder: threshold %d is not positive: %v", i, t)
		}
		if t <= prev {
			return eris.Errorf("ladder: threshold %d is not ascending: %v <= %v", i, t, prev)
		}
		prev = t
	}
	if err := d.Breakpoints.validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks every category definition.
func (c Config) Validate() error {
	if err := c.Pool.Validate(); err != nil {
		return eris.Wrap(err, "ladder: pool")
	}
	if err := c.Individual.Validate(); err != nil {
		return eris.Wrap(err, "ladder: individual")
	}
	return nil
}

// Evaluate returns every ladder amount t with highWaterMark < t <= newTotal,
// in ascending order. It is pure and idempotent: callers may retry freely,
// registry effects only happen on registration. The ladder must satisfy
// Validate; a malformed ladder is a caller contract violation.
func Evaluate(thresholds []float64, highWaterMark, newTotal float64) []float64 {
	var crossed []float64
	for _, t := range thresholds {
		if t > highWaterMark && t <= newTotal {
			crossed = append(crossed, t)
		}
	}
	return crossed
}
