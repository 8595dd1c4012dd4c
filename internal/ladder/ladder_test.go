package ladder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_ReturnsNewlyCrossed(t *testing.T) {
	thresholds := []float64{0.05, 1, 5, 10}

	got := Evaluate(thresholds, 0, 5)
	assert.Equal(t, []float64{0.05, 1, 5}, got)
}

func TestEvaluate_ExcludesAlreadyAwarded(t *testing.T) {
	thresholds := []float64{0.05, 1, 5, 10}

	got := Evaluate(thresholds, 1, 10)
	assert.Equal(t, []float64{5, 10}, got)
}

func TestEvaluate_BoundsAreHalfOpen(t *testing.T) {
	thresholds := []float64{1, 5, 10}

	// High-water-mark itself is excluded, the new total is included.
	got := Evaluate(thresholds, 5, 10)
	assert.Equal(t, []float64{10}, got)
}

func TestEvaluate_NothingCrossed(t *testing.T) {
	thresholds := []float64{10, 50}

	assert.Nil(t, Evaluate(thresholds, 0, 5))
	assert.Nil(t, Evaluate(thresholds, 50, 50))
}

func TestEvaluate_Idempotent(t *testing.T) {
	thresholds := []float64{0.05, 1, 5, 10}

	first := Evaluate(thresholds, 0, 7)
	second := Evaluate(thresholds, 0, 7)
	assert.Equal(t, first, second)
}

func TestDefinitionValidate(t *testing.T) {
	tests := []struct {
		name    string
		def     Definition
		wantErr bool
	}{
		{
			name: "valid",
			def: Definition{
				Thresholds:  []float64{1, 5, 10},
				Breakpoints: Breakpoints{Silver: 5, Gold: 10, Platinum: 20},
			},
		},
		{
			name:    "empty",
			def:     Definition{Breakpoints: Breakpoints{Silver: 5, Gold: 10, Platinum: 20}},
			wantErr: true,
		},
		{
			name: "not ascending",
			def: Definition{
				Thresholds:  []float64{5, 1},
				Breakpoints: Breakpoints{Silver: 5, Gold: 10, Platinum: 20},
			},
			wantErr: true,
		},
		{
			name: "duplicate",
			def: Definition{
				Thresholds:  []float64{1, 1, 5},
				Breakpoints: Breakpoints{Silver: 5, Gold: 10, Platinum: 20},
			},
			wantErr: true,
		},
		{
			name: "non-positive",
			def: Definition{
				Thresholds:  []float64{0, 5},
				Breakpoints: Breakpoints{Silver: 5, Gold: 10, Platinum: 20},
			},
			wantErr: true,
		},
		{
			name: "breakpoints out of order",
			def: Definition{
				Thresholds:  []float64{1, 5},
				Breakpoints: Breakpoints{Silver: 10, Gold: 5, Platinum: 20},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ladders.yaml")
	content := `
ladders:
  pool:
    thresholds: [0.05, 1, 5, 10]
    breakpoints:
      silver: 100
      gold: 500
      platinum: 1000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.05, 1, 5, 10}, cfg.Pool.Thresholds)
	// Missing categories fall back to defaults.
	assert.Equal(t, Default().Individual, cfg.Individual)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_InvalidLadder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ladders.yaml")
	content := `
ladders:
  pool:
    thresholds: [10, 5]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}
