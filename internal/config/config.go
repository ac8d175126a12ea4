// Package config loads the process configuration from the JSON file at
// $CONFIG_PATH. A local .env, when present, is loaded first so the API key
// and log level can be supplied via the API_KEY and LOG_LEVEL environment
// variables without editing the checked-in config file.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration surface.
type Config struct {
	Port int `json:"port"`

	HAURL  string `json:"ha_url"`
	SHLURL string `json:"shl_url"`
	SSEURL string `json:"sse_url"`

	APNHost    string `json:"apn_host"`
	APNKeyPath string `json:"apn_key_path"`
	APNKeyID   string `json:"apn_key_id"`
	APNTeamID  string `json:"apn_team_id"`
	APNTopic   string `json:"apn_topic"`

	DBPath string `json:"db_path"`
	APIKey string `json:"api_key"`

	// CurrentSeason is re-ingested on the season poll loop's 60s cadence;
	// HistoricalSeasons are ingested once at boot and cached permanently.
	// Neither is discoverable through any upstream feed this service
	// consumes, so both are operator-supplied.
	CurrentSeason     string   `json:"current_season"`
	HistoricalSeasons []string `json:"historical_seasons"`

	SSESleepMillis int  `json:"sse_sleep"`
	Poll           bool `json:"poll"`

	LogLevel string `json:"log_level"`
}

// Load reads $CONFIG_PATH. A local .env, when present, is loaded into the
// environment first; api_key and log_level fall back to the API_KEY and
// LOG_LEVEL environment variables when the JSON leaves them empty. A
// missing or malformed config, or an API key absent from both the JSON and
// the environment, aborts the process at startup; these are the only
// errors this package lets propagate to main.
func Load() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		return nil, fmt.Errorf("config: CONFIG_PATH not set")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.SSESleepMillis <= 0 {
		cfg.SSESleepMillis = 2000
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "data"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = envStr("LOG_LEVEL", "info")
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("config: api_key missing: set api_key in %s or the API_KEY environment variable", path)
	}

	return &cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
