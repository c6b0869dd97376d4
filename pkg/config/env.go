package config

import (
	"os"
	"strings"
)

// Deployment environments the worker distinguishes between
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// GetEnv returns the value of an environment variable, falling back to
// defaultValue when it is unset or empty.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// RequireEnv returns the value of an environment variable and panics when it
// is missing. Reserved for settings the worker cannot start without.
func RequireEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic("required environment variable not set: " + key)
	}
	return value
}

// GetEnvironment returns the current deployment environment, defaulting to
// development. The value is read from COMPRAFLOW_SERVER_ENVIRONMENT and
// normalized to lower case.
func GetEnvironment() string {
	env := GetEnv("COMPRAFLOW_SERVER_ENVIRONMENT", EnvDevelopment)
	return strings.ToLower(strings.TrimSpace(env))
}

// IsDevelopment reports whether the worker runs in development.
func IsDevelopment() bool {
	return GetEnvironment() == EnvDevelopment
}

// IsStaging reports whether the worker runs in staging.
func IsStaging() bool {
	return GetEnvironment() == EnvStaging
}

// IsProduction reports whether the worker runs in production.
func IsProduction() bool {
	return GetEnvironment() == EnvProduction
}

// IsProductionLike reports whether the worker runs in staging or production.
// Configuration validation treats both the same way.
func IsProductionLike() bool {
	return IsStaging() || IsProduction()
}
