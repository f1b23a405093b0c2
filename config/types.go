// Package config provides configuration management for the snakepit server
package config

import (
	"fmt"
	"net"
	"time"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// String returns the string representation of Environment
func (e Environment) String() string {
	return string(e)
}

// IsValid checks if the environment is valid
func (e Environment) IsValid() bool {
	switch e {
	case EnvDevelopment, EnvTesting, EnvStaging, EnvProduction:
		return true
	default:
		return false
	}
}

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

var logLevelRank = map[LogLevel]int{
	LogLevelTrace: 0,
	LogLevelDebug: 1,
	LogLevelInfo:  2,
	LogLevelWarn:  3,
	LogLevelError: 4,
	LogLevelFatal: 5,
}

// String returns the string representation of LogLevel
func (l LogLevel) String() string {
	return string(l)
}

// IsValid checks if the log level is valid
func (l LogLevel) IsValid() bool {
	_, ok := logLevelRank[l]
	return ok
}

// Enabled reports whether a message at level passes the configured level l.
// An invalid l lets everything through.
func (l LogLevel) Enabled(level LogLevel) bool {
	min, ok := logLevelRank[l]
	if !ok {
		return true
	}
	return logLevelRank[level] >= min
}

// Config represents the complete server configuration
type Config struct {
	// Application configuration
	App AppConfig `yaml:"app" json:"app" envPrefix:"APP_"`

	// Logging configuration
	Log LogConfig `yaml:"log" json:"log" envPrefix:"LOG_"`

	// Listener configuration
	Server ServerConfig `yaml:"server" json:"server" envPrefix:"SERVER_"`

	// Match defaults and actor tuning
	Match MatchConfig `yaml:"match" json:"match" envPrefix:"MATCH_"`

	// Tracing export
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry" envPrefix:"TELEMETRY_"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string      `yaml:"name" json:"name" env:"NAME"`
	Version     string      `yaml:"version" json:"version" env:"VERSION"`
	Environment Environment `yaml:"environment" json:"environment" env:"ENVIRONMENT"`
	Debug       bool        `yaml:"debug" json:"debug" env:"DEBUG"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level LogLevel `yaml:"level" json:"level" env:"LEVEL"`

	// Output is stdout, stderr or a file path
	Output string `yaml:"output" json:"output" env:"OUTPUT"`
}

// ServerConfig contains the listener addresses
type ServerConfig struct {
	GRPCAddress     string        `yaml:"grpc_address" json:"grpc_address" env:"GRPC_ADDRESS"`
	HTTPAddress     string        `yaml:"http_address" json:"http_address" env:"HTTP_ADDRESS"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// MatchConfig contains defaults for new matches and actor tuning
type MatchConfig struct {
	DefaultWidth  int           `yaml:"default_width" json:"default_width" env:"DEFAULT_WIDTH"`
	DefaultHeight int           `yaml:"default_height" json:"default_height" env:"DEFAULT_HEIGHT"`
	DefaultTick   time.Duration `yaml:"default_tick" json:"default_tick" env:"DEFAULT_TICK"`

	MailboxSize int           `yaml:"mailbox_size" json:"mailbox_size" env:"MAILBOX_SIZE"`
	StartGrace  time.Duration `yaml:"start_grace" json:"start_grace" env:"START_GRACE"`
	CallTimeout time.Duration `yaml:"call_timeout" json:"call_timeout" env:"CALL_TIMEOUT"`

	// MaxCells caps width*height of requested boards; 0 means no cap
	MaxCells int `yaml:"max_cells" json:"max_cells" env:"MAX_CELLS"`

	// ReapAfter removes finished matches this long after they end; 0 keeps them
	ReapAfter    time.Duration `yaml:"reap_after" json:"reap_after" env:"REAP_AFTER"`
	ReapInterval time.Duration `yaml:"reap_interval" json:"reap_interval" env:"REAP_INTERVAL"`
}

// TelemetryConfig contains OTLP trace export settings
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled" env:"ENABLED"`
	Endpoint    string `yaml:"endpoint" json:"endpoint" env:"ENDPOINT"`
	ServiceName string `yaml:"service_name" json:"service_name" env:"SERVICE_NAME"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "snakepit",
			Version:     "1.0.0",
			Environment: EnvDevelopment,
		},
		Log: LogConfig{
			Level:  LogLevelInfo,
			Output: "stdout",
		},
		Server: ServerConfig{
			GRPCAddress:     "127.0.0.1:50051",
			HTTPAddress:     "127.0.0.1:8000",
			ShutdownTimeout: 10 * time.Second,
		},
		Match: MatchConfig{
			DefaultWidth:  10,
			DefaultHeight: 10,
			DefaultTick:   500 * time.Millisecond,
			MailboxSize:   32,
			StartGrace:    3 * time.Second,
			CallTimeout:   5 * time.Second,
			MaxCells:      10000,
			ReapInterval:  time.Minute,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "snakepit",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate app config
	if c.App.Name == "" {
		return ErrInvalidAppName
	}
	if !c.App.Environment.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidEnvironment, c.App.Environment)
	}

	// Validate log config
	if !c.Log.Level.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level)
	}
	if c.Log.Output == "" {
		return ErrInvalidLogOutput
	}

	// Validate server config
	if err := validateAddress("server.grpc_address", c.Server.GRPCAddress); err != nil {
		return err
	}
	if err := validateAddress("server.http_address", c.Server.HTTPAddress); err != nil {
		return err
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: server.shutdown_timeout must be positive", ErrInvalidDuration)
	}

	// Validate match config
	m := c.Match
	if m.DefaultWidth < 3 || m.DefaultHeight < 1 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidBoardSize, m.DefaultWidth, m.DefaultHeight)
	}
	if m.MaxCells < 0 || (m.MaxCells > 0 && m.DefaultWidth*m.DefaultHeight > m.MaxCells) {
		return fmt.Errorf("%w: default board %dx%d exceeds max_cells %d",
			ErrInvalidBoardSize, m.DefaultWidth, m.DefaultHeight, m.MaxCells)
	}
	if m.DefaultTick <= 0 {
		return fmt.Errorf("%w: match.default_tick must be positive", ErrInvalidDuration)
	}
	if m.MailboxSize <= 0 {
		return ErrInvalidMailboxSize
	}
	if m.StartGrace < 0 {
		return fmt.Errorf("%w: match.start_grace must not be negative", ErrInvalidDuration)
	}
	if m.CallTimeout <= 0 {
		return fmt.Errorf("%w: match.call_timeout must be positive", ErrInvalidDuration)
	}
	if m.ReapAfter < 0 {
		return fmt.Errorf("%w: match.reap_after must not be negative", ErrInvalidDuration)
	}
	if m.ReapAfter > 0 && m.ReapInterval <= 0 {
		return fmt.Errorf("%w: match.reap_interval must be positive when reaping", ErrInvalidDuration)
	}

	// Validate telemetry config
	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return ErrInvalidServiceName
	}

	return nil
}

func validateAddress(field, addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%w: %s %q: %v", ErrInvalidAddress, field, addr, err)
	}
	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// IsDebugEnabled returns true if debug output is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.Log.Level.Enabled(LogLevelDebug)
}
