package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the single configuration surface shared by both transport
// directions: Host/APIPort address the gateway's HTTP API for synchronous
// calls, WSHost/WSPort/WSPath is where we accept the gateway's reverse
// WebSocket, and AccessToken guards both.
type Config struct {
	Host        string `json:"host" env:"TWOBOT_HOST"`
	APIPort     int    `json:"api_port" env:"TWOBOT_API_PORT"`
	WSHost      string `json:"ws_host" env:"TWOBOT_WS_HOST"`
	WSPort      int    `json:"ws_port" env:"TWOBOT_WS_PORT"`
	WSPath      string `json:"ws_path" env:"TWOBOT_WS_PATH"`
	AccessToken string `json:"access_token" env:"TWOBOT_ACCESS_TOKEN"`

	Workers     int `json:"workers" env:"TWOBOT_WORKERS"`
	HTTPTimeout int `json:"http_timeout" env:"TWOBOT_HTTP_TIMEOUT"` // seconds

	RateLimit RateLimitConfig  `json:"rate_limit"`
	Log       LogConfig        `json:"log"`
	Schedules []ScheduleConfig `json:"schedules,omitempty"`
}

type RateLimitConfig struct {
	Enabled           bool `json:"enabled" env:"TWOBOT_RATE_LIMIT_ENABLED"`
	RequestsPerMinute int  `json:"requests_per_minute" env:"TWOBOT_RATE_LIMIT_REQUESTS_PER_MINUTE"`
	Burst             int  `json:"burst" env:"TWOBOT_RATE_LIMIT_BURST"`
}

type LogConfig struct {
	Level string `json:"level" env:"TWOBOT_LOG_LEVEL"`
	File  string `json:"file" env:"TWOBOT_LOG_FILE"`
}

// ScheduleConfig declares a command fired on a cron expression or a fixed
// interval. SelfID 0 sends it over the HTTP API, anything else goes out on
// that bot's WebSocket session.
type ScheduleConfig struct {
	Name    string         `json:"name"`
	Cron    string         `json:"cron,omitempty"`
	EveryMS int64          `json:"every_ms,omitempty"`
	Action  string         `json:"action"`
	Params  map[string]any `json:"params,omitempty"`
	SelfID  int64          `json:"self_id,omitempty"`
	Post    bool           `json:"post,omitempty"`
}

// APIBaseURL returns the root URL of the gateway HTTP API. Host may be a
// bare address or already carry a scheme.
func (c *Config) APIBaseURL() string {
	host := strings.TrimRight(c.Host, "/")
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return host + ":" + strconv.Itoa(c.APIPort)
}

// WSAddr returns the listen address of the reverse WebSocket server.
func (c *Config) WSAddr() string {
	return net.JoinHostPort(c.WSHost, strconv.Itoa(c.WSPort))
}

// HTTPTimeoutDuration returns the per-request timeout for synchronous calls.
func (c *Config) HTTPTimeoutDuration() time.Duration {
	if c.HTTPTimeout <= 0 {
		return 0
	}
	return time.Duration(c.HTTPTimeout) * time.Second
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("host must not be empty"))
	}
	if !validPort(c.APIPort) {
		errs = append(errs, fmt.Errorf("api_port %d out of range", c.APIPort))
	}
	if !validPort(c.WSPort) {
		errs = append(errs, fmt.Errorf("ws_port %d out of range", c.WSPort))
	}
	if c.WSPath != "" && !strings.HasPrefix(c.WSPath, "/") {
		errs = append(errs, fmt.Errorf("ws_path %q must start with /", c.WSPath))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers %d must not be negative", c.Workers))
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("rate_limit.requests_per_minute must be positive when enabled"))
	}
	for i, s := range c.Schedules {
		if s.Action == "" {
			errs = append(errs, fmt.Errorf("schedules[%d]: action is required", i))
		}
		if (s.Cron == "") == (s.EveryMS <= 0) {
			errs = append(errs, fmt.Errorf("schedules[%d]: exactly one of cron and every_ms is required", i))
		}
	}
	return errors.Join(errs...)
}

func validPort(p int) bool {
	return p > 0 && p < 65536
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}
