// Package config loads the broker's YAML configuration, mirroring the
// teacher's internal/policy.Config: a single struct with DefaultConfig()
// supplying fallbacks, loaded once at startup and treated as immutable for
// the lifetime of the broker (spec.md §5 "process-wide configuration").
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the broker's top-level configuration.
type Config struct {
	// WorkspaceRoot is the base directory against which a relative
	// DownstreamConfigFile is resolved and under which the event bus's
	// signal file lives. Tasks without a codebase_id fall back to the fixed
	// id "local:default", not to a codebase derived from this path.
	WorkspaceRoot string `yaml:"workspace_root"`

	LogFile string `yaml:"log_file"`

	// Transport selects which front-end(s) to start: stdio, http, websocket,
	// all, or a comma-separated combination (spec.md §6 MCP_INTERFACE_MODE).
	Transport string `yaml:"transport"`
	HTTPHost  string `yaml:"http_host"`
	HTTPPort  int    `yaml:"http_port"`

	// SessionTTL is how long an issued session token remains valid (§4.6).
	SessionTTL time.Duration `yaml:"session_ttl"`
	// HeartbeatOfflineThreshold is parsed but not read by any component;
	// domain.IsOnline applies a fixed 30s liveness window.
	HeartbeatOfflineThreshold time.Duration `yaml:"heartbeat_offline_threshold"`
	// HeartbeatSchedulerInterval is the per-agent timer period (§4.9).
	HeartbeatSchedulerInterval time.Duration `yaml:"heartbeat_scheduler_interval"`

	// DownstreamConfigFile is the path to the mcp_servers.json file (§4.4, §6).
	DownstreamConfigFile string `yaml:"downstream_config_file"`

	// SnapshotFile is parsed but not read by any component; the broker has
	// no snapshot store and keeps registry state in memory only.
	SnapshotFile string `yaml:"snapshot_file"`
}

// DefaultConfig returns sensible defaults, mirroring policy.DefaultConfig.
func DefaultConfig() *Config {
	return &Config{
		WorkspaceRoot:              ".",
		Transport:                  "stdio",
		HTTPHost:                   "127.0.0.1",
		HTTPPort:                   8943,
		SessionTTL:                 60 * time.Minute,
		HeartbeatOfflineThreshold:  30 * time.Second,
		HeartbeatSchedulerInterval: 10 * time.Second,
		DownstreamConfigFile:       "mcp_servers.json",
	}
}

// Load reads a YAML config file at path, applying it on top of DefaultConfig.
// A missing file is not an error: defaults are returned as-is, matching the
// teacher's tolerant config loading (a broker should start with sane
// defaults rather than refuse to boot over an absent, optional file).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays recognized environment variables onto cfg (spec.md §6).
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("MCP_INTERFACE_MODE"); v != "" {
		c.Transport = v
	}
	if v := getenv("MCP_HTTP_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			c.HTTPPort = port
		}
	}
	if v := getenv("MCP_HTTP_HOST"); v != "" {
		c.HTTPHost = v
	}
	if v := getenv("MCP_CONFIG_FILE"); v != "" {
		c.DownstreamConfigFile = v
	}
}

// DownstreamConfigPath resolves the downstream server config path relative
// to the workspace root if it isn't already absolute.
func (c *Config) DownstreamConfigPath() string {
	if filepath.IsAbs(c.DownstreamConfigFile) {
		return c.DownstreamConfigFile
	}
	return filepath.Join(c.WorkspaceRoot, c.DownstreamConfigFile)
}
