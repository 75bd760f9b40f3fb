package store

import (
	"strings"

	"github.com/amaglobal/ama/config"
)

// PreferenceReader exposes the user-set offline preference. The local store
// implements it; tests substitute fakes.
type PreferenceReader interface {
	OfflinePreference() (value bool, ok bool)
}

// IsOfflineMode decides which backend serves reads and writes. Precedence: a
// stored user preference wins outright, then the explicit configuration flag,
// then whether the remote credentials look usable at all. Pure and side-effect
// free, safe to call on every request.
func IsOfflineMode(prefs PreferenceReader, cfg config.AppConfig) bool {
	if prefs != nil {
		if v, ok := prefs.OfflinePreference(); ok {
			return v
		}
	}
	if cfg.OfflineMode {
		return true
	}
	return !hasValidCredentials(cfg)
}

// hasValidCredentials checks the configured database coordinates for
// syntactically valid, non-placeholder values.
func hasValidCredentials(cfg config.AppConfig) bool {
	if cfg.DatabaseURI != "" {
		return !isPlaceholder(cfg.DatabaseURI)
	}
	if cfg.DBHost == "" || cfg.DBUser == "" {
		return false
	}
	return !isPlaceholder(cfg.DBHost) && !isPlaceholder(cfg.DBUser) && !isPlaceholder(cfg.DBPassword)
}

func isPlaceholder(v string) bool {
	v = strings.ToLower(v)
	for _, marker := range []string{"your-", "your_", "example", "changeme", "placeholder", "<", ">"} {
		if strings.Contains(v, marker) {
			return true
		}
	}
	return false
}
