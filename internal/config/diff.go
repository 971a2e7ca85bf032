package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CorrectorChanged is true when any corrector tuning field changed.
	// The whole block is applied atomically on reload.
	CorrectorChanged bool
	NewCorrector     CorrectorConfig

	// RecentLimitChanged is true when history.recent_limit changed.
	RecentLimitChanged bool
	NewRecentLimit     int
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart; provider and
// listener changes require one.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Corrector != new.Corrector {
		d.CorrectorChanged = true
		d.NewCorrector = new.Corrector
	}

	if old.History.RecentLimit != new.History.RecentLimit {
		d.RecentLimitChanged = true
		d.NewRecentLimit = new.History.RecentLimit
	}

	return d
}
