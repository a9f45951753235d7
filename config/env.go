package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvConfigPath      = "FLASHLIQ_CONFIG"
	EnvOwnerAddress    = "FLASHLIQ_OWNER"
	EnvTreasuryAddress = "FLASHLIQ_TREASURY"
	EnvLogFile         = "FLASHLIQ_LOG_FILE"
	EnvErrorLogFile    = "FLASHLIQ_ERROR_LOG_FILE"
)

// LoadEnv loads environment variables from a .env file if one exists.
func LoadEnv() {
	_ = godotenv.Load()
}

// GetEnvWithDefault gets an environment variable with a default value
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
