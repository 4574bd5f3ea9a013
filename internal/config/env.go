package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables read by the command line tools.
const (
	EnvConfigPath  = "TRAJ_CONFIG"
	EnvDBPath      = "TRAJ_DB"
	EnvLogLevel    = "TRAJ_LOG_LEVEL"
	EnvLogFormat   = "TRAJ_LOG_FORMAT"
	EnvMetricsFile = "TRAJ_METRICS_FILE"
	EnvListen      = "TRAJ_LISTEN"
	EnvWorkers     = "TRAJ_WORKERS"
)

// LoadEnv reads .env files into the process environment. Variables already
// set are not overridden. With no paths, ".env" is used. A missing file is
// returned as an error that callers may ignore.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}
