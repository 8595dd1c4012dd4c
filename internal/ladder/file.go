package ladder

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LoadFile reads ladder configuration from a YAML file. The file carries a
// top-level "ladders" key. Missing categories fall back to the defaults.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, eris.Wrapf(err, "ladder: read config %s", path)
	}

	var wrapper struct {
		Ladders Config `yaml:"ladders"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Config{}, eris.Wrap(err, "ladder: parse config")
	}

	cfg := wrapper.Ladders
	def := Default()
	if len(cfg.Pool.Thresholds) == 0 {
		cfg.Pool = def.Pool
	} else if cfg.Pool.Breakpoints == (Breakpoints{}) {
		cfg.Pool.Breakpoints = def.Pool.Breakpoints
	}
	if len(cfg.Individual.Thresholds) == 0 {
		cfg.Individual = def.Individual
	} else if cfg.Individual.Breakpoints == (Breakpoints{}) {
		cfg.Individual.Breakpoints = def.Individual.Breakpoints
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
