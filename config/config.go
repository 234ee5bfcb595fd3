package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

type Configuration struct {
	ApiPort  string `json:"api_port" env:"PORT"`
	LogPath  string `json:"log_path" env:"LOG_PATH"`
	LogLevel string `json:"log_level" env:"LOG_LEVEL"`

	Database    string `json:"database" env:"DATABASE"` // "sqlite3" ou "postgres"
	DbHost      string `json:"db_host" env:"DB_HOST"`
	DbPort      string `json:"db_port" env:"DB_PORT"`
	DbUser      string `json:"db_user" env:"DB_USER"`
	DbName      string `json:"db_name" env:"DB_NAME"`
	DbPass      string `json:"db_pass" env:"DB_PASS"`
	DbPath      string `json:"db_path" env:"DB_PATH"`
	AutoMigrate bool   `json:"auto_migrate" env:"AUTOMIGRATE"`

	Webhook struct {
		RateLimitPerMinute int      `json:"rate_limit_per_minute" env:"WEBHOOK_RATE_LIMIT_PER_MINUTE"`
		BodyLimitBytes     int64    `json:"body_limit_bytes" env:"WEBHOOK_BODY_LIMIT_BYTES"`
		TrustedProxies     []string `json:"trusted_proxies" env:"WEBHOOK_TRUSTED_PROXIES" envSeparator:","`
	} `json:"webhook"`

	ZApi struct {
		BaseURL        string `json:"base_url" env:"ZAPI_BASE_URL"`
		InstanceID     string `json:"instance_id" env:"ZAPI_INSTANCE_ID"`
		InstanceToken  string `json:"instance_token" env:"ZAPI_INSTANCE_TOKEN"`
		ClientToken    string `json:"client_token" env:"ZAPI_CLIENT_TOKEN"`
		TimeoutSeconds int    `json:"timeout_seconds" env:"ZAPI_TIMEOUT_SECONDS"`
	} `json:"zapi"`

	Pipeline struct {
		ProfileSyncTTLMinutes  int    `json:"profile_sync_ttl_minutes" env:"PIPELINE_PROFILE_SYNC_TTL_MINUTES"`
		TrafficCooldownMinutes int    `json:"traffic_cooldown_minutes" env:"PIPELINE_TRAFFIC_COOLDOWN_MINUTES"`
		CacheMaxEntries        int    `json:"cache_max_entries" env:"PIPELINE_CACHE_MAX_ENTRIES"`
		EchoWindowMinutes      int    `json:"echo_window_minutes" env:"PIPELINE_ECHO_WINDOW_MINUTES"`
		EchoLookback           int    `json:"echo_lookback" env:"PIPELINE_ECHO_LOOKBACK"`
		ExternalTimeoutSeconds int    `json:"external_timeout_seconds" env:"PIPELINE_EXTERNAL_TIMEOUT_SECONDS"`
		TimeZone               string `json:"time_zone" env:"PIPELINE_TIME_ZONE"`
	} `json:"pipeline"`
}

// Get lê o arquivo de configuração e encerra o processo em caso de erro.
func Get(path string) Configuration {
	c, err := Load(path)
	if err != nil {
		log.Fatal(err)
	}
	return c
}

// Load reads the JSON file at path (a missing file means defaults only),
// overlays environment variables and fills defaults.
func Load(path string) (Configuration, error) {
	var c Configuration

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(b, &c); err != nil {
				return c, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return c, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("parse env: %w", err)
	}

	c.applyDefaults()
	return c, nil
}

func (c *Configuration) applyDefaults() {
	// defaults (pra evitar nil/zero chato)
	if c.ApiPort == "" {
		c.ApiPort = "8080"
	}
	if c.LogPath == "" {
		c.LogPath = "logs/server.log"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Database == "" {
		c.Database = "sqlite3"
	}
	if c.DbPath == "" {
		c.DbPath = "db/database.db"
	}
	if c.Webhook.RateLimitPerMinute <= 0 {
		c.Webhook.RateLimitPerMinute = 120
	}
	if c.Webhook.BodyLimitBytes <= 0 {
		c.Webhook.BodyLimitBytes = 256 * 1024
	}
	if c.ZApi.BaseURL == "" {
		c.ZApi.BaseURL = "https://api.z-api.io"
	}
	if c.ZApi.TimeoutSeconds <= 0 {
		c.ZApi.TimeoutSeconds = 15
	}
	if c.Pipeline.ProfileSyncTTLMinutes <= 0 {
		c.Pipeline.ProfileSyncTTLMinutes = 15
	}
	if c.Pipeline.TrafficCooldownMinutes <= 0 {
		c.Pipeline.TrafficCooldownMinutes = 60
	}
	if c.Pipeline.CacheMaxEntries <= 0 {
		c.Pipeline.CacheMaxEntries = 5000
	}
	if c.Pipeline.EchoWindowMinutes <= 0 {
		c.Pipeline.EchoWindowMinutes = 5
	}
	if c.Pipeline.EchoLookback <= 0 {
		c.Pipeline.EchoLookback = 20
	}
	if c.Pipeline.ExternalTimeoutSeconds <= 0 {
		c.Pipeline.ExternalTimeoutSeconds = 10
	}
	if c.Pipeline.TimeZone == "" {
		c.Pipeline.TimeZone = "America/Sao_Paulo"
	}
}

func (c Configuration) ProfileSyncTTL() time.Duration {
	return time.Duration(c.Pipeline.ProfileSyncTTLMinutes) * time.Minute
}

func (c Configuration) TrafficCooldown() time.Duration {
	return time.Duration(c.Pipeline.TrafficCooldownMinutes) * time.Minute
}

func (c Configuration) EchoWindow() time.Duration {
	return time.Duration(c.Pipeline.EchoWindowMinutes) * time.Minute
}

func (c Configuration) ExternalTimeout() time.Duration {
	return time.Duration(c.Pipeline.ExternalTimeoutSeconds) * time.Second
}

func (c Configuration) ZApiTimeout() time.Duration {
	return time.Duration(c.ZApi.TimeoutSeconds) * time.Second
}
