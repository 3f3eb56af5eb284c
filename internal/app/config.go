package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// Config captures runtime options sourced from the environment or an optional
// .env file. Repository coordinates may also arrive later from CLI flags, so
// only credentials and formats are validated here.
type Config struct {
	Username  string
	Password  string
	Token     string
	Org       string
	Repo      string
	BaseURL   string
	UploadURL string
	LogLevel  string
	LogFormat string
	Verbose   bool
}

// LoadConfig reads settings from the environment, applies defaults, and
// performs validation. A .env file in the working directory is loaded first
// when present; real environment variables win over it.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Username:  strings.TrimSpace(os.Getenv("GHPICK_USERNAME")),
		Password:  strings.TrimSpace(os.Getenv("GHPICK_PASSWORD")),
		Token:     strings.TrimSpace(os.Getenv("GHPICK_TOKEN")),
		Org:       strings.TrimSpace(os.Getenv("GHPICK_ORG")),
		Repo:      strings.TrimSpace(os.Getenv("GHPICK_REPO")),
		BaseURL:   strings.TrimSpace(os.Getenv("GHPICK_BASE_URL")),
		UploadURL: strings.TrimSpace(os.Getenv("GHPICK_UPLOAD_URL")),
		LogLevel:  strings.ToLower(strings.TrimSpace(envOrDefault("GHPICK_LOG_LEVEL", defaultLogLevel))),
		LogFormat: strings.ToLower(strings.TrimSpace(envOrDefault("GHPICK_LOG_FORMAT", defaultLogFormat))),
	}

	if rawVerbose := strings.TrimSpace(os.Getenv("GHPICK_VERBOSE")); rawVerbose != "" {
		verbose, err := strconv.ParseBool(rawVerbose)
		if err != nil {
			return Config{}, fmt.Errorf("parse GHPICK_VERBOSE: %w", err)
		}
		cfg.Verbose = verbose
	}

	if cfg.Token == "" && (cfg.Username == "" || cfg.Password == "") {
		return Config{}, fmt.Errorf("credentials are required (set GHPICK_TOKEN, or GHPICK_USERNAME and GHPICK_PASSWORD)")
	}

	if cfg.UploadURL != "" && cfg.BaseURL == "" {
		return Config{}, fmt.Errorf("GHPICK_UPLOAD_URL cannot be set without GHPICK_BASE_URL")
	}

	supportedFormats := map[string]struct{}{"text": {}, "json": {}}
	if _, ok := supportedFormats[cfg.LogFormat]; !ok {
		return Config{}, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
