package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := DefaultConfig()
	if cfg.Transport != want.Transport || cfg.HTTPPort != want.HTTPPort {
		t.Errorf("got %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SessionTTL != DefaultConfig().SessionTTL {
		t.Errorf("SessionTTL = %v, want default", cfg.SessionTTL)
	}
}

func TestLoadOverlaysYAMLOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broker.yaml")
	body := "transport: http\nhttp_port: 9000\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Transport != "http" || cfg.HTTPPort != 9000 {
		t.Errorf("got transport=%q http_port=%d, want http/9000", cfg.Transport, cfg.HTTPPort)
	}
	// Fields absent from the YAML overlay keep their default value.
	if cfg.HeartbeatSchedulerInterval != DefaultConfig().HeartbeatSchedulerInterval {
		t.Error("expected unset fields to retain their default")
	}
}

func TestLoadMalformedYAMLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broker.yaml")
	if err := os.WriteFile(path, []byte("transport: [unterminated"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}

func TestApplyEnvOverridesTransportAndPort(t *testing.T) {
	cfg := DefaultConfig()
	env := map[string]string{"MCP_INTERFACE_MODE": "all", "MCP_HTTP_PORT": "1234"}
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.Transport != "all" {
		t.Errorf("Transport = %q, want all", cfg.Transport)
	}
	if cfg.HTTPPort != 1234 {
		t.Errorf("HTTPPort = %d, want 1234", cfg.HTTPPort)
	}
}

func TestApplyEnvLeavesUnsetVarsUntouched(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApplyEnv(func(string) string { return "" })
	if cfg.Transport != DefaultConfig().Transport {
		t.Error("expected Transport to remain at its default when no env var is set")
	}
}

func TestDownstreamConfigPathJoinsWorkspaceRootWhenRelative(t *testing.T) {
	cfg := &Config{WorkspaceRoot: "/srv/workspace", DownstreamConfigFile: "mcp_servers.json"}
	want := filepath.Join("/srv/workspace", "mcp_servers.json")
	if got := cfg.DownstreamConfigPath(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDownstreamConfigPathKeepsAbsolutePathAsIs(t *testing.T) {
	cfg := &Config{WorkspaceRoot: "/srv/workspace", DownstreamConfigFile: "/etc/mcp_servers.json"}
	if got := cfg.DownstreamConfigPath(); got != "/etc/mcp_servers.json" {
		t.Errorf("got %q, want /etc/mcp_servers.json", got)
	}
}

func TestDefaultConfigSessionTTLIsOneHour(t *testing.T) {
	if DefaultConfig().SessionTTL != time.Hour {
		t.Errorf("SessionTTL = %v, want 1h", DefaultConfig().SessionTTL)
	}
}
