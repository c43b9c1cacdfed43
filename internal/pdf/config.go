package pdf

import (
	"encoding/json"
	"os"
)

// DefaultPrefetchRadius is the default number of pages rendered ahead and
// behind the current page (spec §4.2).
const DefaultPrefetchRadius = 10

// Config is the render core's tunables, loaded from a JSON file and
// overridable by environment variables (spec §6).
type Config struct {
	Workers        int    `json:"workers"`
	CacheSize      int    `json:"cache_size"`
	PrefetchRadius int    `json:"prefetch_radius"`
	PoolSize       int    `json:"pool_size"`
	RegionSize     int    `json:"region_size"`
	MinReuseAgeMs  int    `json:"min_reuse_age_ms"`
	Protocol       string `json:"protocol,omitempty"`
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		Workers:        DefaultWorkers,
		CacheSize:      DefaultCacheSize,
		PrefetchRadius: DefaultPrefetchRadius,
		PoolSize:       10,
		RegionSize:     32 * 1024 * 1024,
		MinReuseAgeMs:  1000,
	}
}

// LoadConfig reads a JSON config file, falling back to DefaultConfig for a
// missing file, matching internal/keymap's LoadConfig tolerance.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides layers BOOKOKRAT_* environment variables over a loaded
// Config (spec §6).
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BOOKOKRAT_PROTOCOL"); v != "" {
		cfg.Protocol = v
	}
}
