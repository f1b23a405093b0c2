package config

import "errors"

// Configuration validation errors
var (
	ErrInvalidAppName     = errors.New("invalid application name")
	ErrInvalidEnvironment = errors.New("invalid environment")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidLogOutput   = errors.New("invalid log output")
	ErrInvalidAddress     = errors.New("invalid listen address")
	ErrInvalidDuration    = errors.New("invalid duration")
	ErrInvalidBoardSize   = errors.New("invalid board size")
	ErrInvalidMailboxSize = errors.New("invalid mailbox size")
	ErrInvalidServiceName = errors.New("invalid telemetry service name")
)

// Configuration loading errors
var (
	ErrConfigFileNotFound  = errors.New("configuration file not found")
	ErrConfigParseError    = errors.New("configuration parse error")
	ErrConfigValidateError = errors.New("configuration validation error")
	ErrEnvironmentVarError = errors.New("environment variable error")
	ErrConfigWatchError    = errors.New("configuration watch error")
	ErrUnsupportedFormat   = errors.New("unsupported configuration format")
)
