package scanner

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings represents per-scanner configuration loaded from scanners.yaml.
// Weights feed the health aggregator; interval overrides feed the
// scheduler's default schedule entries.
type Settings struct {
	// Scanners maps scanner ids to their configuration
	Scanners map[string]ScannerSettings `yaml:"scanners"`
}

// ScannerSettings configures a single scanner.
type ScannerSettings struct {
	// Enabled controls whether the scanner's schedule entry is armed.
	// Nil inherits the built-in default.
	Enabled *bool `yaml:"enabled,omitempty"`

	// Weight is the scanner's integer weight in the overall health score.
	// Zero inherits the default weight of 1.
	Weight int `yaml:"weight,omitempty"`

	// Interval overrides the scanner's default schedule interval,
	// e.g. "6h", "24h", "168h".
	Interval string `yaml:"interval,omitempty"`
}

// LoadSettings loads per-scanner settings from a YAML file. A missing file
// is not an error; it yields empty settings.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{Scanners: map[string]ScannerSettings{}}, nil
		}
		return nil, fmt.Errorf("reading scanner settings: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scanner settings: %w", err)
	}
	if s.Scanners == nil {
		s.Scanners = map[string]ScannerSettings{}
	}
	return &s, nil
}

// Weight returns the configured weight for a scanner id, defaulting to 1.
func (s *Settings) Weight(id string) int {
	if cfg, ok := s.Scanners[id]; ok && cfg.Weight > 0 {
		return cfg.Weight
	}
	return 1
}

// IntervalOverride returns the configured interval for a scanner id, or
// zero when none is set or the value does not parse.
func (s *Settings) IntervalOverride(id string) time.Duration {
	cfg, ok := s.Scanners[id]
	if !ok || cfg.Interval == "" {
		return 0
	}
	d, err := time.ParseDuration(cfg.Interval)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

// EnabledOverride returns the configured enabled flag, or nil when the
// built-in default should apply.
func (s *Settings) EnabledOverride(id string) *bool {
	if cfg, ok := s.Scanners[id]; ok {
		return cfg.Enabled
	}
	return nil
}

// Weights returns the full weight map for the given scanner ids.
func (s *Settings) Weights(ids []string) map[string]int {
	out := make(map[string]int, len(ids))
	for _, id := range ids {
		out[id] = s.Weight(id)
	}
	return out
}
