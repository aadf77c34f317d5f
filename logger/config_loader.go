package logger

import (
	"flag"
	"os"
)

var (
	logLevelFlag   = flag.String("log_level", "", "Log level (debug, info, warn, error)")
	webhookURLFlag = flag.String("log_webhook_url", "", "Webhook URL receiving buffered logs")
	appNameFlag    = flag.String("app_name", "", "Application name attached to webhook logs")
	envFlag        = flag.String("env", "", "Environment (development, staging, production)")
	logFileFlag    = flag.String("log_file", "", "Write logs to this file instead of stdout")
)

// EnvVar describes an environment variable understood by the program.
type EnvVar struct {
	Name        string
	Description string
}

// GetEnvVarsHelp returns the logger environment variables for usage output.
func GetEnvVarsHelp() []EnvVar {
	return []EnvVar{
		{"LOG_LEVEL", "Log level (debug, info, warn, error)"},
		{"LOG_WEBHOOK_URL", "Webhook URL for logging"},
		{"LOG_FILE", "Log file path (default: stdout)"},
		{"APP_NAME", "Application name"},
		{"ENV", "Environment (development, staging, production)"},
	}
}

// LoadConfig loads logger config from flags and environment variables.
// Flags take precedence over environment variables.
// The caller must call flag.Parse() before calling this function.
func LoadConfig() (*Config, error) {
	levelStr := flagOrEnv(logLevelFlag, "LOG_LEVEL", "")
	if levelStr == "" {
		levelStr = "info"
	}
	level, err := ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}
	return &Config{
		Level:       level,
		WebhookURL:  flagOrEnv(webhookURLFlag, "LOG_WEBHOOK_URL", ""),
		AppName:     flagOrEnv(appNameFlag, "APP_NAME", "ytdl-client"),
		Environment: flagOrEnv(envFlag, "ENV", "development"),
		File:        flagOrEnv(logFileFlag, "LOG_FILE", ""),
	}, nil
}

func flagOrEnv(flagValue *string, key, defaultValue string) string {
	if flagValue != nil && *flagValue != "" {
		return *flagValue
	}
	return getEnv(key, defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
