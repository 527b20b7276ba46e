package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the system-wide settings coordinator. Every actor receives the
// pieces it needs explicitly at creation; nothing reads ambient process state.
type Config struct {
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Database  *DatabaseConfig  `json:"database"`
	Auth      *AuthConfig      `json:"auth"`
	Room      *RoomConfig      `json:"room"`
}

type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

type DatabaseConfig struct {
	Path    string        `json:"path"`
	Timeout time.Duration `json:"timeout"`
}

// AuthConfig carries the token secret shared with the login service and the
// key that guards the internal alert-dispatch endpoint.
type AuthConfig struct {
	TokenSecret       string        `json:"token_secret"`
	InternalKey       string        `json:"internal_key"`
	NotifyAuthTimeout time.Duration `json:"notify_auth_timeout"`
}

// RoomConfig bounds per-room resources.
type RoomConfig struct {
	HistoryCap        int `json:"history_cap"`
	AlertCap          int `json:"alert_cap"`
	MessagesPerMinute int `json:"messages_per_minute"`
}

// DefaultConfig returns production-ready defaults. History caps follow the
// two-tier retention policy: 500 chat messages, 50 alerts.
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Database: &DatabaseConfig{
			Path:    "./wardline.db",
			Timeout: 30 * time.Second,
		},
		Auth: &AuthConfig{
			NotifyAuthTimeout: 10 * time.Second,
		},
		Room: &RoomConfig{
			HistoryCap:        500,
			AlertCap:          50,
			MessagesPerMinute: 100,
		},
	}
}

// Validate prevents invalid system configurations from reaching components.
func (c *Config) Validate() error {
	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 || c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket intervals must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}
	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}
	if c.Auth == nil {
		return fmt.Errorf("auth configuration is required")
	}
	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("token secret cannot be empty")
	}
	if c.Auth.NotifyAuthTimeout <= 0 {
		return fmt.Errorf("notification auth timeout must be positive")
	}
	if c.Room == nil {
		return fmt.Errorf("room configuration is required")
	}
	if c.Room.HistoryCap <= 0 || c.Room.AlertCap <= 0 {
		return fmt.Errorf("history caps must be positive")
	}
	if c.Room.MessagesPerMinute <= 0 {
		return fmt.Errorf("message rate limit must be positive")
	}
	return nil
}

// LoadFromEnv overlays environment variables onto the defaults.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if host := os.Getenv("WARDLINE_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if port := os.Getenv("WARDLINE_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	if v := os.Getenv("WARDLINE_HTTP_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.HTTP.ReadTimeout = d
		}
	}
	if v := os.Getenv("WARDLINE_HTTP_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.HTTP.WriteTimeout = d
		}
	}
	if v := os.Getenv("WARDLINE_WEBSOCKET_PING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WebSocket.PingInterval = d
		}
	}
	if v := os.Getenv("WARDLINE_WEBSOCKET_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WebSocket.ReadTimeout = d
		}
	}
	if v := os.Getenv("WARDLINE_WEBSOCKET_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WebSocket.WriteTimeout = d
		}
	}
	if v := os.Getenv("WARDLINE_WEBSOCKET_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.WebSocket.BufferSize = n
		}
	}
	if path := os.Getenv("WARDLINE_DATABASE_PATH"); path != "" {
		config.Database.Path = path
	}
	if v := os.Getenv("WARDLINE_DATABASE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Database.Timeout = d
		}
	}
	if secret := os.Getenv("WARDLINE_TOKEN_SECRET"); secret != "" {
		config.Auth.TokenSecret = secret
	}
	if key := os.Getenv("WARDLINE_INTERNAL_KEY"); key != "" {
		config.Auth.InternalKey = key
	}
	if v := os.Getenv("WARDLINE_NOTIFY_AUTH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Auth.NotifyAuthTimeout = d
		}
	}
	if v := os.Getenv("WARDLINE_HISTORY_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Room.HistoryCap = n
		}
	}
	if v := os.Getenv("WARDLINE_ALERT_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Room.AlertCap = n
		}
	}
	if v := os.Getenv("WARDLINE_MESSAGES_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Room.MessagesPerMinute = n
		}
	}

	return config
}

// configFile mirrors Config with string durations for JSON parsing.
type configFile struct {
	HTTP *struct {
		Host         string `json:"host"`
		Port         int    `json:"port"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
	} `json:"http"`
	WebSocket *struct {
		PingInterval string `json:"ping_interval"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
		BufferSize   int    `json:"buffer_size"`
	} `json:"websocket"`
	Database *struct {
		Path    string `json:"path"`
		Timeout string `json:"timeout"`
	} `json:"database"`
	Auth *struct {
		TokenSecret       string `json:"token_secret"`
		InternalKey       string `json:"internal_key"`
		NotifyAuthTimeout string `json:"notify_auth_timeout"`
	} `json:"auth"`
	Room *struct {
		HistoryCap        int `json:"history_cap"`
		AlertCap          int `json:"alert_cap"`
		MessagesPerMinute int `json:"messages_per_minute"`
	} `json:"room"`
}

// LoadFromFile reads a JSON configuration file over the env/default layers.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config := LoadFromEnv()

	if file.HTTP != nil {
		if file.HTTP.Host != "" {
			config.HTTP.Host = file.HTTP.Host
		}
		if file.HTTP.Port > 0 {
			config.HTTP.Port = file.HTTP.Port
		}
		setDuration(&config.HTTP.ReadTimeout, file.HTTP.ReadTimeout)
		setDuration(&config.HTTP.WriteTimeout, file.HTTP.WriteTimeout)
	}
	if file.WebSocket != nil {
		setDuration(&config.WebSocket.PingInterval, file.WebSocket.PingInterval)
		setDuration(&config.WebSocket.ReadTimeout, file.WebSocket.ReadTimeout)
		setDuration(&config.WebSocket.WriteTimeout, file.WebSocket.WriteTimeout)
		if file.WebSocket.BufferSize > 0 {
			config.WebSocket.BufferSize = file.WebSocket.BufferSize
		}
	}
	if file.Database != nil {
		if file.Database.Path != "" {
			config.Database.Path = file.Database.Path
		}
		setDuration(&config.Database.Timeout, file.Database.Timeout)
	}
	if file.Auth != nil {
		if file.Auth.TokenSecret != "" {
			config.Auth.TokenSecret = file.Auth.TokenSecret
		}
		if file.Auth.InternalKey != "" {
			config.Auth.InternalKey = file.Auth.InternalKey
		}
		setDuration(&config.Auth.NotifyAuthTimeout, file.Auth.NotifyAuthTimeout)
	}
	if file.Room != nil {
		if file.Room.HistoryCap > 0 {
			config.Room.HistoryCap = file.Room.HistoryCap
		}
		if file.Room.AlertCap > 0 {
			config.Room.AlertCap = file.Room.AlertCap
		}
		if file.Room.MessagesPerMinute > 0 {
			config.Room.MessagesPerMinute = file.Room.MessagesPerMinute
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	return config, nil
}

func setDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
	}
}

// LoadWithPrecedence resolves configuration as file > environment > defaults.
// File errors are ignored so environment/defaults still work.
func LoadWithPrecedence(path string) *Config {
	config := LoadFromEnv()

	if path != "" {
		if fileConfig, err := LoadFromFile(path); err == nil {
			config = fileConfig
		}
	}

	return config
}
