package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DatePlaceholder is replaced with the local date (YYYY-MM-DD) in
// monitor.log_path. The gateway starts a new file every day.
const DatePlaceholder = "{date}"

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Monitor MonitorConfig `yaml:"monitor"`
	Gateway GatewayConfig `yaml:"gateway"`
	Agents  []AgentConfig `yaml:"agents"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxConnections int      `yaml:"max_connections"`
}

type MonitorConfig struct {
	LogPath                string        `yaml:"log_path"`
	PollInterval           time.Duration `yaml:"poll_interval"`
	InactivityTimeout      time.Duration `yaml:"inactivity_timeout"`
	Watch                  bool          `yaml:"watch"`
	SnapshotInterval       time.Duration `yaml:"snapshot_interval"`
	BroadcastThrottle      time.Duration `yaml:"broadcast_throttle"`
	HealthWarningThreshold int           `yaml:"health_warning_threshold"`
}

type GatewayConfig struct {
	ProcessName string `yaml:"process_name"`
}

// AgentConfig is one entry of the agent registry.
type AgentConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 3004,
			Host: "127.0.0.1",
		},
		Monitor: MonitorConfig{
			LogPath:                "/tmp/openclaw/openclaw-" + DatePlaceholder + ".log",
			PollInterval:           2 * time.Second,
			InactivityTimeout:      5 * time.Minute,
			Watch:                  true,
			SnapshotInterval:       5 * time.Second,
			BroadcastThrottle:      100 * time.Millisecond,
			HealthWarningThreshold: 3,
		},
		Gateway: GatewayConfig{
			ProcessName: "openclaw",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads the YAML file at path on top of the defaults. A missing or
// unparsable file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the defaults when the file
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Monitor.LogPath) == "" {
		return errors.New("monitor.log_path is empty")
	}
	if c.Monitor.PollInterval <= 0 {
		return fmt.Errorf("monitor.poll_interval must be positive, got %s", c.Monitor.PollInterval)
	}
	if c.Monitor.InactivityTimeout <= 0 {
		return fmt.Errorf("monitor.inactivity_timeout must be positive, got %s", c.Monitor.InactivityTimeout)
	}
	if c.Monitor.SnapshotInterval <= 0 {
		return fmt.Errorf("monitor.snapshot_interval must be positive, got %s", c.Monitor.SnapshotInterval)
	}
	if c.Monitor.BroadcastThrottle < 0 {
		return fmt.Errorf("monitor.broadcast_throttle must not be negative, got %s", c.Monitor.BroadcastThrottle)
	}
	if c.Monitor.HealthWarningThreshold < 1 {
		return fmt.Errorf("monitor.health_warning_threshold must be at least 1, got %d", c.Monitor.HealthWarningThreshold)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	seen := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("agents[%d]: empty id", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("agents[%d]: duplicate id %q", i, a.ID)
		}
		seen[a.ID] = true
	}
	return nil
}

// ResolveLogPath substitutes the local date of now into pattern. Patterns
// without the placeholder are returned unchanged.
func ResolveLogPath(pattern string, now time.Time) string {
	if !strings.Contains(pattern, DatePlaceholder) {
		return pattern
	}
	return strings.ReplaceAll(pattern, DatePlaceholder, now.Local().Format("2006-01-02"))
}
