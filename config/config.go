// Package config loads gateway settings from defaults, an optional .env
// file, and ISTUDY_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the gateway's runtime configuration.
type Config struct {
	ListenAddr string
	APIBaseURL string
	DataDir    string

	SessionTTL    time.Duration
	IdleTTL       time.Duration
	CheckInterval time.Duration
}

// Load builds the configuration. A .env in the working directory is loaded
// when present; environment variables win over it, and both win over
// defaults.
func Load() (Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("listenAddr", ":4173")
	v.SetDefault("apiBaseURL", "https://friendly-empathy-production.up.railway.app/api")
	v.SetDefault("dataDir", "./data")
	v.SetDefault("sessionTTL", 24*time.Hour)
	v.SetDefault("idleTTL", 24*time.Hour)
	v.SetDefault("checkInterval", time.Minute)

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return Config{}, fmt.Errorf("loading .env: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("checking .env: %w", err)
	}

	v.SetEnvPrefix("ISTUDY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Config{
		ListenAddr:    v.GetString("listenAddr"),
		APIBaseURL:    strings.TrimRight(v.GetString("apiBaseURL"), "/"),
		DataDir:       v.GetString("dataDir"),
		SessionTTL:    v.GetDuration("sessionTTL"),
		IdleTTL:       v.GetDuration("idleTTL"),
		CheckInterval: v.GetDuration("checkInterval"),
	}
	if cfg.APIBaseURL == "" {
		return Config{}, fmt.Errorf("apiBaseURL must not be empty")
	}
	return cfg, nil
}
