// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/parley/config.yaml",
	"/etc/parley/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5001,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    35 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  30 * time.Second,
			Environment:     "development",
			ClientURL:       "http://localhost:5173",
		},
		Security: SecurityConfig{
			TokenTTL:        7 * 24 * time.Hour,
			CookieName:      "jwt_T",
			BcryptCost:      10,
			AuthRateLimit:   10,
			APIRateLimit:    120,
			RateLimitWindow: time.Minute,

			MessageRateLimit: 20,
		},
		Presence: PresenceConfig{
			Backend:      BackendAuto,
			Bucket:       "online_users",
			ProbeTimeout: 2 * time.Second,
			Breaker: BreakerConfig{
				MaxRequests:      1,
				Interval:         time.Minute,
				Timeout:          30 * time.Second,
				FailureThreshold: 5,
				OpTimeout:        time.Second,
			},
		},
		Realtime: RealtimeConfig{
			TypingTimeout:   3000 * time.Millisecond,
			SendBuffer:      256,
			EventsPerSecond: 20,
			EventBurst:      40,
			WriteWait:       10 * time.Second,
			PongWait:        60 * time.Second,
			MaxMessageSize:  512 * 1024,
		},
		Storage: StorageConfig{
			Path:       "/data/parley",
			GCInterval: 10 * time.Minute,
		},
		Limits: LimitsConfig{
			MaxMessageLength: 2000,
			EditWindow:       15 * time.Minute,
			MaxGroupMembers:  50,
			DefaultPageSize:  50,
			MaxPageSize:      100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence (lowest first).
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom is Load with an explicit config file path. An empty path skips the file layer.
func LoadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// JWT_SECRET -> security.jwt_secret, PRESENCE_BACKEND -> presence.backend
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or empty string.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists the paths parsed as comma-separated slices when set from env.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored so unrelated environment does not leak into config.
var envMappings = map[string]string{
	"host":             "server.host",
	"port":             "server.port",
	"read_timeout":     "server.read_timeout",
	"write_timeout":    "server.write_timeout",
	"idle_timeout":     "server.idle_timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"request_timeout":  "server.request_timeout",
	"node_env":         "server.environment",
	"client_url":       "server.client_url",

	"jwt_secret":        "security.jwt_secret",
	"token_ttl":         "security.token_ttl",
	"cookie_name":       "security.cookie_name",
	"cookie_secure":     "security.cookie_secure",
	"bcrypt_cost":       "security.bcrypt_cost",
	"cors_origins":      "security.cors_origins",
	"auth_rate_limit":   "security.auth_rate_limit",
	"api_rate_limit":    "security.api_rate_limit",
	"rate_limit_window": "security.rate_limit_window",

	"message_rate_limit": "security.message_rate_limit",

	"presence_backend":            "presence.backend",
	"nats_url":                    "presence.nats_url",
	"nats_embedded":               "presence.embedded_server",
	"nats_store_dir":              "presence.embedded_store_dir",
	"presence_bucket":             "presence.bucket",
	"presence_probe_timeout":      "presence.probe_timeout",
	"presence_entry_ttl":          "presence.entry_ttl",
	"presence_breaker_threshold":  "presence.breaker.failure_threshold",
	"presence_breaker_timeout":    "presence.breaker.timeout",
	"presence_breaker_op_timeout": "presence.breaker.op_timeout",

	"typing_timeout":       "realtime.typing_timeout",
	"ws_send_buffer":       "realtime.send_buffer",
	"ws_events_per_second": "realtime.events_per_second",
	"ws_event_burst":       "realtime.event_burst",
	"ws_max_message_size":  "realtime.max_message_size",

	"badger_path":        "storage.path",
	"badger_in_memory":   "storage.in_memory",
	"badger_gc_interval": "storage.gc_interval",

	"max_message_length": "limits.max_message_length",
	"edit_window":        "limits.edit_window",
	"max_group_members":  "limits.max_group_members",
	"default_page_size":  "limits.default_page_size",
	"max_page_size":      "limits.max_page_size",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
