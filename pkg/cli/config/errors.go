package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrNoProfile        = goerr.New("profile not found")
	ErrInvalidProfile   = goerr.New("invalid profile")
	ErrDuplicateProfile = goerr.New("duplicate profile ID")
	ErrInvalidLogConfig = goerr.New("invalid logging configuration")
)

// Context keys for error values
const (
	ConfigPathKey = "config_path"
	ProfileIDKey  = "profile_id"
	BackendKey    = "backend"
)
