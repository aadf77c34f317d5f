package ytdl_client

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/isseis/go-ytdl-client/local_storage"
	"github.com/isseis/go-ytdl-client/ytdl_api"
)

const appDirName = "ytdl-client"

var (
	apiURLFlag       = flag.String("api_url", "", "Base URL of the download service API")
	stateDirFlag     = flag.String("state_dir", "", "Directory holding the client identity and the warm-start cache")
	durationUnitFlag = flag.String("duration_unit", "", "Unit of durations sent by the backend (seconds, milliseconds)")
	httpTimeoutFlag  = flag.String("http_timeout", "", "Timeout of a single API request, e.g. 30s")
	getRetriesFlag   = flag.String("get_retries", "", "Retries of idempotent GET requests")
	downloadDirFlag  = flag.String("download_dir", "", "Directory where fetched files are saved")
)

// EnvVar describes an environment variable understood by the client.
type EnvVar struct {
	Name        string
	Description string
}

// GetEnvVarsHelp returns the client environment variables for usage output.
func GetEnvVarsHelp() []EnvVar {
	return []EnvVar{
		{"YTDL_API_URL", "Base URL of the download service API (required)"},
		{"YTDL_STATE_DIR", "State directory (default: $XDG_STATE_HOME/ytdl-client)"},
		{"YTDL_DURATION_UNIT", "Duration unit on the wire: seconds (default) or milliseconds"},
		{"YTDL_HTTP_TIMEOUT", "Timeout of a single API request (default: 30s)"},
		{"YTDL_GET_RETRIES", "Retries of idempotent GET requests (default: 2)"},
		{"YTDL_DOWNLOAD_DIR", "Directory where fetched files are saved (default: current directory)"},
	}
}

// Config holds the settings of a client.
type Config struct {
	APIURL       string
	StateDir     string
	DurationUnit ytdl_api.DurationUnit
	HTTPTimeout  time.Duration
	GetRetries   int
	DownloadDir  string
}

// LoadConfig loads the client config from flags and environment variables.
// Flags take precedence over environment variables.
// The caller must call flag.Parse() before calling this function.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		APIURL:      flagOrEnv(apiURLFlag, "YTDL_API_URL", ""),
		StateDir:    flagOrEnv(stateDirFlag, "YTDL_STATE_DIR", ""),
		DownloadDir: flagOrEnv(downloadDirFlag, "YTDL_DOWNLOAD_DIR", "."),
	}
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("missing API URL: set YTDL_API_URL or -api_url")
	}

	if cfg.StateDir == "" {
		dir, err := local_storage.DefaultDir(appDirName)
		if err != nil {
			return nil, err
		}
		cfg.StateDir = dir
	}

	unit, err := ytdl_api.ParseDurationUnit(flagOrEnv(durationUnitFlag, "YTDL_DURATION_UNIT", ""))
	if err != nil {
		return nil, err
	}
	cfg.DurationUnit = unit

	timeoutStr := flagOrEnv(httpTimeoutFlag, "YTDL_HTTP_TIMEOUT", ytdl_api.DefaultTimeout.String())
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil || timeout <= 0 {
		return nil, fmt.Errorf("invalid HTTP timeout: %q", timeoutStr)
	}
	cfg.HTTPTimeout = timeout

	retriesStr := flagOrEnv(getRetriesFlag, "YTDL_GET_RETRIES", strconv.Itoa(ytdl_api.DefaultMaxRetries))
	retries, err := strconv.Atoi(retriesStr)
	if err != nil || retries < 0 {
		return nil, fmt.Errorf("invalid GET retry count: %q", retriesStr)
	}
	cfg.GetRetries = retries

	return cfg, nil
}

func flagOrEnv(flagValue *string, key, defaultValue string) string {
	if flagValue != nil && *flagValue != "" {
		return *flagValue
	}
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
