package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Overlay modes for carrying check-in state from a persisted snapshot.
const (
	OverlayByPosition = "position"
	OverlayByID       = "id"
)

// Config holds application configuration.
type Config struct {
	// TemplatePath points at a trip template JSON file.
	// Empty means the built-in template compiled into the binary.
	TemplatePath string `json:"template_path,omitempty"`

	// OverlayMode selects how persisted check-ins are matched to stops on load:
	// "position" (day i / item j) or "id".
	OverlayMode string `json:"overlay_mode,omitempty"`

	// WeatherTTLMinutes is how long a cached forecast is served without a refetch.
	WeatherTTLMinutes int `json:"weather_ttl_minutes,omitempty"`

	// WeatherAPIKey is the OpenWeather API key. Usually supplied via
	// OPENWEATHER_API_KEY in the environment or ~/.tripkit/.env instead.
	WeatherAPIKey string `json:"weather_api_key,omitempty"`

	// WeatherBaseURL overrides the forecast endpoint (tests, proxies).
	WeatherBaseURL string `json:"weather_base_url,omitempty"`

	// WeatherUnits is passed through to the provider ("metric" or "imperial").
	WeatherUnits string `json:"weather_units,omitempty"`

	// WeatherRequestsPerMinute caps outbound forecast requests.
	WeatherRequestsPerMinute int `json:"weather_requests_per_minute,omitempty"`

	// LogLevel is one of: debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// LogFormat is "text" or "json".
	LogFormat string `json:"log_format,omitempty"`

	// LogOutput is "stderr" or "file". Stdout is reserved for command output
	// and the MCP stdio transport.
	LogOutput string `json:"log_output,omitempty"`

	// LogFile is the log path used when LogOutput is "file".
	// Relative paths are resolved against the base directory.
	LogFile string `json:"log_file,omitempty"`

	// Rotation settings for LogOutput "file".
	LogMaxSizeMB  int `json:"log_max_size_mb,omitempty"`
	LogMaxBackups int `json:"log_max_backups,omitempty"`
	LogMaxAgeDays int `json:"log_max_age_days,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool groups to disable entirely.
	// Known types: "itinerary", "checklist", "expense", "voucher", "weather".
	DisabledTypes []string `json:"disabled_types,omitempty"`

	// HTTPBind and HTTPPort configure `trip serve`.
	HTTPBind string `json:"http_bind,omitempty"`
	HTTPPort int    `json:"http_port,omitempty"`

	// CORSOrigins lists origins allowed to call the HTTP API.
	CORSOrigins []string `json:"cors_origins,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		OverlayMode:              OverlayByPosition,
		WeatherTTLMinutes:        180,
		WeatherBaseURL:           "https://api.openweathermap.org/data/2.5/forecast",
		WeatherUnits:             "metric",
		WeatherRequestsPerMinute: 30,
		LogLevel:                 "info",
		LogFormat:                "text",
		LogOutput:                "stderr",
		LogFile:                  "logs/tripkit.log",
		LogMaxSizeMB:             10,
		LogMaxBackups:            3,
		LogMaxAgeDays:            28,
		HTTPBind:                 "127.0.0.1",
		HTTPPort:                 8787,
	}
}

// Load loads configuration from baseDir/config.json, then applies the
// environment (baseDir/.env first, real environment variables win).
// Returns default config if neither exists.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.tripkit.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}

	// godotenv.Load never overrides variables that are already set.
	envPath := filepath.Join(baseDir, ".env")
	if _, statErr := os.Stat(envPath); statErr == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, err
		}
	}

	return Merge(cfg, fromEnv()), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// fromEnv builds an overlay config from TRIPKIT_* variables.
func fromEnv() *Config {
	cfg := &Config{
		TemplatePath:   os.Getenv("TRIPKIT_TEMPLATE"),
		OverlayMode:    os.Getenv("TRIPKIT_OVERLAY_MODE"),
		WeatherAPIKey:  getEnv("TRIPKIT_WEATHER_API_KEY", os.Getenv("OPENWEATHER_API_KEY")),
		WeatherBaseURL: os.Getenv("TRIPKIT_WEATHER_BASE_URL"),
		LogLevel:       os.Getenv("TRIPKIT_LOG_LEVEL"),
		LogFormat:      os.Getenv("TRIPKIT_LOG_FORMAT"),
		LogOutput:      os.Getenv("TRIPKIT_LOG_OUTPUT"),
		HTTPBind:       os.Getenv("TRIPKIT_HTTP_BIND"),
		HTTPPort:       getEnvInt("TRIPKIT_HTTP_PORT", 0),
	}
	if origins := os.Getenv("TRIPKIT_CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = strings.Split(origins, ",")
	}
	return cfg
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt is getEnv for integers; unparsable values fall back.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		TemplatePath:             pickString(overlay.TemplatePath, base.TemplatePath),
		OverlayMode:              pickString(overlay.OverlayMode, base.OverlayMode),
		WeatherTTLMinutes:        pickInt(overlay.WeatherTTLMinutes, base.WeatherTTLMinutes),
		WeatherAPIKey:            pickString(overlay.WeatherAPIKey, base.WeatherAPIKey),
		WeatherBaseURL:           pickString(overlay.WeatherBaseURL, base.WeatherBaseURL),
		WeatherUnits:             pickString(overlay.WeatherUnits, base.WeatherUnits),
		WeatherRequestsPerMinute: pickInt(overlay.WeatherRequestsPerMinute, base.WeatherRequestsPerMinute),
		LogLevel:                 pickString(overlay.LogLevel, base.LogLevel),
		LogFormat:                pickString(overlay.LogFormat, base.LogFormat),
		LogOutput:                pickString(overlay.LogOutput, base.LogOutput),
		LogFile:                  pickString(overlay.LogFile, base.LogFile),
		LogMaxSizeMB:             pickInt(overlay.LogMaxSizeMB, base.LogMaxSizeMB),
		LogMaxBackups:            pickInt(overlay.LogMaxBackups, base.LogMaxBackups),
		LogMaxAgeDays:            pickInt(overlay.LogMaxAgeDays, base.LogMaxAgeDays),
		DBMaxOpenConns:           pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:           pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
		HTTPBind:                 pickString(overlay.HTTPBind, base.HTTPBind),
		HTTPPort:                 pickInt(overlay.HTTPPort, base.HTTPPort),
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)
	result.CORSOrigins = mergeStringSlice(base.CORSOrigins, overlay.CORSOrigins)

	return result
}

// Validate reports configuration values that cannot be used.
func (c *Config) Validate() error {
	switch c.OverlayMode {
	case OverlayByPosition, OverlayByID:
	default:
		return errors.New("overlay_mode must be one of: position, id")
	}
	if c.WeatherTTLMinutes < 0 {
		return errors.New("weather_ttl_minutes must be non-negative")
	}
	switch c.LogOutput {
	case "stderr", "file":
	default:
		return errors.New("log_output must be one of: stderr, file")
	}
	return nil
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return strings.TrimSpace(overlay)
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
