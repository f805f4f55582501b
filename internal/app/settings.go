package app

import (
	"maps"
	"strings"
)

// Settings is a read-only view over loaded configuration.
type Settings struct {
	flags map[string]bool
}

// NewSettings snapshots the feature flags of cfg.
func NewSettings(cfg *Config) Settings {
	flags := make(map[string]bool)
	if cfg != nil {
		for name, on := range cfg.FeatureFlags {
			flags[strings.ToLower(strings.TrimSpace(name))] = on
		}
	}
	return Settings{flags: flags}
}

// Enabled reports whether the named feature flag is on. Unknown flags are off.
func (s Settings) Enabled(name string) bool {
	return s.flags[strings.ToLower(strings.TrimSpace(name))]
}

// Flags returns a copy of every configured flag.
func (s Settings) Flags() map[string]bool {
	return maps.Clone(s.flags)
}
