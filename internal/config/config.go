package config

import (
	"github.com/spf13/viper"
)

// Config carries the process-level settings of the geosearch CLI. All
// values come from GEOSEARCH_* environment variables with sane defaults,
// so the binary runs with no configuration at all.
type Config struct {
	DataDir  string // raw Geonames files
	CacheDir string // engine snapshot cache
	DataURL  string // dump archive override, empty means the full dump
	LogLevel string
	Limit    int // default result count per query
}

// Load reads the environment into a Config.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("geosearch")
	v.AutomaticEnv()

	v.SetDefault("data_dir", "./geosearch-data")
	v.SetDefault("cache_dir", "./geosearch-cache")
	v.SetDefault("data_url", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("limit", 10)

	return &Config{
		DataDir:  v.GetString("data_dir"),
		CacheDir: v.GetString("cache_dir"),
		DataURL:  v.GetString("data_url"),
		LogLevel: v.GetString("log_level"),
		Limit:    v.GetInt("limit"),
	}, nil
}
