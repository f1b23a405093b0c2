package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if err := config.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}

	if config.Server.GRPCAddress != "127.0.0.1:50051" {
		t.Errorf("Expected grpc address 127.0.0.1:50051, got %s", config.Server.GRPCAddress)
	}
	if config.Server.HTTPAddress != "127.0.0.1:8000" {
		t.Errorf("Expected http address 127.0.0.1:8000, got %s", config.Server.HTTPAddress)
	}
	if config.Match.DefaultWidth != 10 || config.Match.DefaultHeight != 10 {
		t.Errorf("Expected a 10x10 default board, got %dx%d", config.Match.DefaultWidth, config.Match.DefaultHeight)
	}
	if config.Match.DefaultTick != 500*time.Millisecond {
		t.Errorf("Expected 500ms default tick, got %v", config.Match.DefaultTick)
	}
	if config.Match.ReapAfter != 0 {
		t.Errorf("Expected finished matches to be kept by default, got reap_after %v", config.Match.ReapAfter)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr error
	}{
		{"valid config", func(c *Config) {}, nil},
		{"empty app name", func(c *Config) { c.App.Name = "" }, ErrInvalidAppName},
		{"unknown environment", func(c *Config) { c.App.Environment = "moon" }, ErrInvalidEnvironment},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }, ErrInvalidLogLevel},
		{"empty log output", func(c *Config) { c.Log.Output = "" }, ErrInvalidLogOutput},
		{"grpc address without port", func(c *Config) { c.Server.GRPCAddress = "localhost" }, ErrInvalidAddress},
		{"http address without port", func(c *Config) { c.Server.HTTPAddress = "" }, ErrInvalidAddress},
		{"zero shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = 0 }, ErrInvalidDuration},
		{"board too narrow", func(c *Config) { c.Match.DefaultWidth = 2 }, ErrInvalidBoardSize},
		{"board too short", func(c *Config) { c.Match.DefaultHeight = 0 }, ErrInvalidBoardSize},
		{"board over cap", func(c *Config) { c.Match.MaxCells = 50 }, ErrInvalidBoardSize},
		{"negative cap", func(c *Config) { c.Match.MaxCells = -1 }, ErrInvalidBoardSize},
		{"zero tick", func(c *Config) { c.Match.DefaultTick = 0 }, ErrInvalidDuration},
		{"zero mailbox", func(c *Config) { c.Match.MailboxSize = 0 }, ErrInvalidMailboxSize},
		{"negative grace", func(c *Config) { c.Match.StartGrace = -time.Second }, ErrInvalidDuration},
		{"zero call timeout", func(c *Config) { c.Match.CallTimeout = 0 }, ErrInvalidDuration},
		{"reaping without interval", func(c *Config) {
			c.Match.ReapAfter = time.Minute
			c.Match.ReapInterval = 0
		}, ErrInvalidDuration},
		{"telemetry without name", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.ServiceName = ""
		}, ErrInvalidServiceName},
		{"no cap", func(c *Config) { c.Match.MaxCells = 0 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			err := config.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLogLevelEnabled(t *testing.T) {
	tests := []struct {
		configured LogLevel
		level      LogLevel
		want       bool
	}{
		{LogLevelInfo, LogLevelDebug, false},
		{LogLevelInfo, LogLevelInfo, true},
		{LogLevelInfo, LogLevelError, true},
		{LogLevelDebug, LogLevelDebug, true},
		{LogLevelTrace, LogLevelDebug, true},
		{LogLevelError, LogLevelWarn, false},
		{"bogus", LogLevelTrace, true},
	}

	for _, tt := range tests {
		if got := tt.configured.Enabled(tt.level); got != tt.want {
			t.Errorf("%s.Enabled(%s): expected %v, got %v", tt.configured, tt.level, tt.want, got)
		}
	}

	config := DefaultConfig()
	if config.IsDebugEnabled() {
		t.Error("Expected debug to be off at info level")
	}
	config.Log.Level = LogLevelDebug
	if !config.IsDebugEnabled() {
		t.Error("Expected debug to be on at debug level")
	}
}

func TestLoaderYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "snakepit.yaml", `
app:
  name: test-pit
  environment: staging
log:
  level: debug
server:
  grpc_address: "0.0.0.0:9000"
match:
  default_width: 20
  default_tick: 250ms
  reap_after: 1m
`)

	config, err := NewLoader().LoadFromFile(path)
	if err != nil {
		t.Fatalf("Failed to load YAML config: %v", err)
	}

	if config.App.Name != "test-pit" {
		t.Errorf("Expected app name test-pit, got %s", config.App.Name)
	}
	if config.App.Environment != EnvStaging {
		t.Errorf("Expected staging, got %s", config.App.Environment)
	}
	if config.Server.GRPCAddress != "0.0.0.0:9000" {
		t.Errorf("Expected 0.0.0.0:9000, got %s", config.Server.GRPCAddress)
	}
	if config.Match.DefaultWidth != 20 {
		t.Errorf("Expected width 20, got %d", config.Match.DefaultWidth)
	}
	if config.Match.DefaultTick != 250*time.Millisecond {
		t.Errorf("Expected 250ms tick, got %v", config.Match.DefaultTick)
	}
	if config.Match.ReapAfter != time.Minute {
		t.Errorf("Expected 1m reap_after, got %v", config.Match.ReapAfter)
	}

	// untouched keys keep their defaults
	if config.Server.HTTPAddress != "127.0.0.1:8000" {
		t.Errorf("Expected default http address, got %s", config.Server.HTTPAddress)
	}
	if config.Match.DefaultHeight != 10 {
		t.Errorf("Expected default height 10, got %d", config.Match.DefaultHeight)
	}
	if config.Match.MailboxSize != 32 {
		t.Errorf("Expected default mailbox 32, got %d", config.Match.MailboxSize)
	}
}

func TestLoaderJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "snakepit.json", `{
	"app": {"name": "json-pit", "environment": "production"},
	"log": {"level": "warn", "output": "stderr"},
	"match": {"max_cells": 400, "call_timeout": 2000000000}
}`)

	config, err := NewLoader().LoadFromFile(path)
	if err != nil {
		t.Fatalf("Failed to load JSON config: %v", err)
	}

	if config.App.Name != "json-pit" {
		t.Errorf("Expected app name json-pit, got %s", config.App.Name)
	}
	if !config.IsProduction() {
		t.Errorf("Expected production, got %s", config.App.Environment)
	}
	if config.Log.Level != LogLevelWarn || config.Log.Output != "stderr" {
		t.Errorf("Unexpected log config: %+v", config.Log)
	}
	if config.Match.MaxCells != 400 {
		t.Errorf("Expected max_cells 400, got %d", config.Match.MaxCells)
	}
	if config.Match.CallTimeout != 2*time.Second {
		t.Errorf("Expected 2s call timeout, got %v", config.Match.CallTimeout)
	}
}

func TestLoaderErrors(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader()

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"missing file", filepath.Join(dir, "absent.yaml"), ErrConfigFileNotFound},
		{"unknown extension", writeFile(t, dir, "snakepit.toml", "x = 1"), ErrUnsupportedFormat},
		{"bad yaml", writeFile(t, dir, "bad.yaml", "app: [unclosed"), ErrConfigParseError},
		{"bad json", writeFile(t, dir, "bad.json", "{"), ErrConfigParseError},
		{"fails validation", writeFile(t, dir, "invalid.yaml", "match:\n  default_width: 1\n"), ErrConfigValidateError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.LoadFromFile(tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SNAKEPIT_APP_NAME", "env-pit")
	t.Setenv("SNAKEPIT_LOG_LEVEL", "error")
	t.Setenv("SNAKEPIT_SERVER_HTTP_ADDRESS", "0.0.0.0:8080")
	t.Setenv("SNAKEPIT_MATCH_DEFAULT_TICK", "1s")
	t.Setenv("SNAKEPIT_MATCH_MAILBOX_SIZE", "64")
	t.Setenv("SNAKEPIT_TELEMETRY_ENABLED", "true")

	path := writeFile(t, t.TempDir(), "snakepit.yaml", `
app:
  name: file-pit
log:
  level: info
`)

	config, err := NewLoader().LoadFromFile(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if config.App.Name != "env-pit" {
		t.Errorf("Expected env to win over file, got %s", config.App.Name)
	}
	if config.Log.Level != LogLevelError {
		t.Errorf("Expected log level error, got %s", config.Log.Level)
	}
	if config.Server.HTTPAddress != "0.0.0.0:8080" {
		t.Errorf("Expected 0.0.0.0:8080, got %s", config.Server.HTTPAddress)
	}
	if config.Match.DefaultTick != time.Second {
		t.Errorf("Expected 1s tick, got %v", config.Match.DefaultTick)
	}
	if config.Match.MailboxSize != 64 {
		t.Errorf("Expected mailbox 64, got %d", config.Match.MailboxSize)
	}
	if !config.Telemetry.Enabled {
		t.Error("Expected telemetry to be enabled")
	}
}

func TestEnvironmentOverrideRejected(t *testing.T) {
	t.Setenv("SNAKEPIT_MATCH_MAILBOX_SIZE", "lots")

	_, err := NewLoader().Load("")
	if !errors.Is(err, ErrEnvironmentVarError) {
		t.Errorf("Expected %v, got %v", ErrEnvironmentVarError, err)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	config, err := NewLoader().Load("")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if config.App.Name != "snakepit" {
		t.Errorf("Expected default name, got %s", config.App.Name)
	}
}

func TestLoadFromReader(t *testing.T) {
	config, err := NewLoader().LoadFromReader(strings.NewReader("match:\n  default_height: 5\n"), FormatYAML)
	if err != nil {
		t.Fatalf("Failed to load from reader: %v", err)
	}
	if config.Match.DefaultHeight != 5 {
		t.Errorf("Expected height 5, got %d", config.Match.DefaultHeight)
	}
}

func TestAutoLoad(t *testing.T) {
	empty := t.TempDir()
	withFile := t.TempDir()
	writeFile(t, withFile, "config.yaml", "app:\n  name: auto-pit\n")

	config, err := NewLoader().SetSearchPaths([]string{empty, withFile}).AutoLoad()
	if err != nil {
		t.Fatalf("Failed to auto-load config: %v", err)
	}
	if config.App.Name != "auto-pit" {
		t.Errorf("Expected app name auto-pit, got %s", config.App.Name)
	}

	config, err = NewLoader().SetSearchPaths([]string{empty}).AutoLoad()
	if err != nil {
		t.Fatalf("Expected defaults without a file, got %v", err)
	}
	if config.App.Name != "snakepit" {
		t.Errorf("Expected default app name, got %s", config.App.Name)
	}
}

func TestWatcher(t *testing.T) {
	path := writeFile(t, t.TempDir(), "snakepit.yaml", "match:\n  default_width: 10\n")

	watcher, err := NewWatcher(path, NewLoader(), WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Stop()

	if got := watcher.GetConfig().Match.DefaultWidth; got != 10 {
		t.Errorf("Expected initial width 10, got %d", got)
	}

	changed := make(chan *Config, 4)
	watcher.OnConfigChange(func(oldConfig, newConfig *Config) {
		if oldConfig.Match.DefaultWidth == 10 && newConfig.Match.DefaultWidth == 15 {
			changed <- newConfig
		}
	})

	if err := watcher.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}

	// an invalid write is ignored and the previous config is kept
	writeFile(t, filepath.Dir(path), "snakepit.yaml", "match:\n  default_width: 1\n")
	time.Sleep(100 * time.Millisecond)
	if got := watcher.GetConfig().Match.DefaultWidth; got != 10 {
		t.Errorf("Expected invalid config to be ignored, got width %d", got)
	}

	writeFile(t, filepath.Dir(path), "snakepit.yaml", "match:\n  default_width: 15\n")

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("Configuration change was not detected within timeout")
	}

	if got := watcher.GetConfig().Match.DefaultWidth; got != 15 {
		t.Errorf("Expected updated width 15, got %d", got)
	}
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "snakepit.yaml", "log:\n  level: info\n")

	watcher, err := NewWatcher(path, NewLoader())
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Stop()

	var calls int
	watcher.OnConfigChange(func(_, _ *Config) { calls++ })
	watcher.OnConfigChange(func(_, _ *Config) { panic("boom") })

	writeFile(t, dir, "snakepit.yaml", "log:\n  level: debug\n")
	if err := watcher.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if calls != 1 {
		t.Errorf("Expected 1 callback, got %d", calls)
	}
	if watcher.GetConfig().Log.Level != LogLevelDebug {
		t.Errorf("Expected debug, got %s", watcher.GetConfig().Log.Level)
	}

	if _, err := NewWatcher(filepath.Join(dir, "snakepit.ini"), NewLoader()); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected %v, got %v", ErrUnsupportedFormat, err)
	}
}
