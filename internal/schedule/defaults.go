package schedule

import (
	"time"

	"github.com/dcyfr/dcyfr-ai-cli/internal/scanner"
)

// builtinDefault describes one built-in schedule entry before settings
// overrides are applied.
type builtinDefault struct {
	id       string
	name     string
	scanner  string
	interval time.Duration
	enabled  bool
}

var builtinDefaults = []builtinDefault{
	{"license-headers-daily", "License header sweep", "license-headers", 24 * time.Hour, true},
	{"design-tokens-daily", "Design token usage", "design-tokens", 24 * time.Hour, true},
	{"secret-patterns-6h", "Secret pattern sweep", "secret-patterns", 6 * time.Hour, true},
	{"dependency-audit-weekly", "Dependency audit", "dependency-audit", 7 * 24 * time.Hour, true},
	{"todo-tracker-daily", "Deferred-work census", "todo-tracker", 24 * time.Hour, true},
	{"doc-freshness-weekly", "Doc freshness review", "doc-freshness", 7 * 24 * time.Hour, true},
}

// Defaults builds the built-in schedule entries, applying any interval and
// enabled overrides from the scanner settings file.
func Defaults(settings *scanner.Settings) []Entry {
	out := make([]Entry, 0, len(builtinDefaults))
	for _, d := range builtinDefaults {
		interval := d.interval
		enabled := d.enabled
		if settings != nil {
			if o := settings.IntervalOverride(d.scanner); o > 0 {
				interval = o
			}
			if o := settings.EnabledOverride(d.scanner); o != nil {
				enabled = *o
			}
		}
		out = append(out, Entry{
			ID:         d.id,
			Name:       d.name,
			Scanner:    d.scanner,
			IntervalMS: interval.Milliseconds(),
			Enabled:    enabled,
		})
	}
	return out
}
