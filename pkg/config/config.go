// Package config handles vegvisir configuration via YAML files and
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Command-line flags (--data-dir, --backend, etc.)
//  2. Environment variables (VEGVISIR_*)
//  3. Config file (vegvisir.yaml)
//  4. Built-in defaults
//
// Example usage:
//
//	cfg, err := config.LoadFromFile(config.FindConfigFile())
//	if err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//
// Environment variables (all use the VEGVISIR_ prefix):
//
// Storage:
//   - VEGVISIR_STORAGE_BACKEND="memory" or "badger"
//   - VEGVISIR_DATA_DIR="./data"
//   - VEGVISIR_BADGER_IN_MEMORY=true
//   - VEGVISIR_BADGER_SYNC_WRITES=true
//
// Planner:
//   - VEGVISIR_PLAN_CACHE_ENABLED=false
//   - VEGVISIR_PLAN_CACHE_SIZE=256
//
// Tracing:
//   - VEGVISIR_TRACING_ENABLED=true
//   - VEGVISIR_TRACING_ENDPOINT="localhost:4317"
//   - VEGVISIR_TRACING_SAMPLE_RATIO=1.0
//   - VEGVISIR_SERVICE_NAME="vegvisir"
//
// Logging:
//   - VEGVISIR_LOG_LEVEL="INFO"
//   - VEGVISIR_QUERY_LOG_ENABLED=true
//   - VEGVISIR_SLOW_QUERY_THRESHOLD=500ms
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backend names accepted by StorageConfig.Backend.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Config holds all vegvisir configuration.
//
// Use LoadFromFile or LoadFromEnv to create one, then Validate before use.
type Config struct {
	// Storage engine settings
	Storage StorageConfig

	// Planner settings
	Planner PlannerConfig

	// Tracing settings
	Tracing TracingConfig

	// Logging settings
	Logging LoggingConfig
}

// StorageConfig holds storage engine settings.
type StorageConfig struct {
	// Backend selects the storage engine ("memory" or "badger").
	Backend string
	// DataDir is the directory for on-disk storage.
	DataDir string
	// InMemory runs the badger backend without touching disk.
	InMemory bool
	// SyncWrites makes badger fsync every write. Slower but safest.
	SyncWrites bool
}

// PlannerConfig holds query planning settings.
type PlannerConfig struct {
	// PlanCacheEnabled controls compiled-plan reuse across executions.
	PlanCacheEnabled bool
	// PlanCacheSize is the maximum number of cached plans.
	PlanCacheSize int
}

// TracingConfig holds OpenTelemetry export settings.
type TracingConfig struct {
	// Enabled turns span export on.
	Enabled bool
	// Endpoint is the OTLP gRPC collector address (host:port).
	Endpoint string
	// ServiceName reported on every span.
	ServiceName string
	// SampleRatio in [0, 1]; 1 traces every query.
	SampleRatio float64
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level (DEBUG, INFO, WARN, ERROR)
	Level string
	// QueryLogEnabled logs every executed query.
	QueryLogEnabled bool
	// SlowQueryThreshold above which a query is logged regardless.
	SlowQueryThreshold time.Duration
}

// LoadDefaults returns a Config with all built-in defaults.
// This is the base configuration before any overrides are applied.
func LoadDefaults() *Config {
	config := &Config{}

	// Storage defaults
	config.Storage.Backend = BackendMemory
	config.Storage.DataDir = "./data"
	config.Storage.InMemory = false
	config.Storage.SyncWrites = false

	// Planner defaults
	config.Planner.PlanCacheEnabled = true
	config.Planner.PlanCacheSize = 256

	// Tracing defaults
	config.Tracing.Enabled = false
	config.Tracing.Endpoint = "localhost:4317"
	config.Tracing.ServiceName = "vegvisir"
	config.Tracing.SampleRatio = 1.0

	// Logging defaults
	config.Logging.Level = "INFO"
	config.Logging.QueryLogEnabled = false
	config.Logging.SlowQueryThreshold = 500 * time.Millisecond

	return config
}

// LoadFromEnv loads configuration from environment variables.
//
// All values have defaults, so LoadFromEnv can be called without any
// environment variables set.
func LoadFromEnv() *Config {
	config := LoadDefaults()
	applyEnvVars(config)
	return config
}

// applyEnvVars applies environment variable overrides to an existing
// config. Environment variables take precedence over config file values.
func applyEnvVars(config *Config) {
	// Storage settings
	if v := getEnv("VEGVISIR_STORAGE_BACKEND", ""); v != "" {
		config.Storage.Backend = strings.ToLower(v)
	}
	if v := getEnv("VEGVISIR_DATA_DIR", ""); v != "" {
		config.Storage.DataDir = v
	}
	if getEnv("VEGVISIR_BADGER_IN_MEMORY", "") == "true" {
		config.Storage.InMemory = true
	}
	if getEnv("VEGVISIR_BADGER_SYNC_WRITES", "") == "true" {
		config.Storage.SyncWrites = true
	}

	// Planner settings
	if getEnv("VEGVISIR_PLAN_CACHE_ENABLED", "") == "false" {
		config.Planner.PlanCacheEnabled = false
	}
	if v := getEnvInt("VEGVISIR_PLAN_CACHE_SIZE", 0); v > 0 {
		config.Planner.PlanCacheSize = v
	}

	// Tracing settings
	if getEnv("VEGVISIR_TRACING_ENABLED", "") == "true" {
		config.Tracing.Enabled = true
	}
	if v := getEnv("VEGVISIR_TRACING_ENDPOINT", ""); v != "" {
		config.Tracing.Endpoint = v
		// An endpoint provided via env var turns tracing on.
		config.Tracing.Enabled = true
	}
	if v := getEnv("VEGVISIR_SERVICE_NAME", ""); v != "" {
		config.Tracing.ServiceName = v
	}
	if v := getEnvFloat("VEGVISIR_TRACING_SAMPLE_RATIO", -1); v >= 0 {
		config.Tracing.SampleRatio = v
	}

	// Logging settings
	if v := getEnv("VEGVISIR_LOG_LEVEL", ""); v != "" {
		config.Logging.Level = v
	}
	if getEnv("VEGVISIR_QUERY_LOG_ENABLED", "") == "true" {
		config.Logging.QueryLogEnabled = true
	}
	if v := getEnvDuration("VEGVISIR_SLOW_QUERY_THRESHOLD", 0); v > 0 {
		config.Logging.SlowQueryThreshold = v
	}
}

// YAMLConfig represents the YAML configuration file structure.
// All fields mirror the environment variable configuration options.
type YAMLConfig struct {
	Storage struct {
		Backend    string `yaml:"backend"`
		DataDir    string `yaml:"data_dir"`
		Path       string `yaml:"path"` // Alias for data_dir
		InMemory   bool   `yaml:"in_memory"`
		SyncWrites bool   `yaml:"sync_writes"`
	} `yaml:"storage"`

	Planner struct {
		PlanCacheEnabled bool `yaml:"plan_cache_enabled"`
		PlanCacheSize    int  `yaml:"plan_cache_size"`
	} `yaml:"planner"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		Endpoint    string  `yaml:"endpoint"`
		ServiceName string  `yaml:"service_name"`
		SampleRatio float64 `yaml:"sample_ratio"`
	} `yaml:"tracing"`

	Logging struct {
		Level              string `yaml:"level"`
		QueryLogEnabled    bool   `yaml:"query_log_enabled"`
		SlowQueryThreshold string `yaml:"slow_query_threshold"`
	} `yaml:"logging"`
}

// LoadFromFile loads configuration with proper precedence:
//  1. Built-in defaults (lowest priority)
//  2. YAML config file
//  3. Environment variables (highest priority before CLI flags)
//
// Command-line flags are applied by the caller after this.
//
// Example YAML:
//
//	storage:
//	  backend: "badger"
//	  data_dir: "/var/lib/vegvisir"
//	planner:
//	  plan_cache_size: 512
//	tracing:
//	  enabled: true
//	  endpoint: "collector:4317"
//
// A missing file is not an error; defaults plus environment overrides
// are returned.
func LoadFromFile(configPath string) (*Config, error) {
	config := LoadDefaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvVars(config)
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var yamlCfg YAMLConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// === Storage Settings ===
	if yamlCfg.Storage.Backend != "" {
		config.Storage.Backend = strings.ToLower(yamlCfg.Storage.Backend)
	}
	if yamlCfg.Storage.Path != "" {
		config.Storage.DataDir = yamlCfg.Storage.Path
	}
	if yamlCfg.Storage.DataDir != "" {
		config.Storage.DataDir = yamlCfg.Storage.DataDir
	}
	if yamlCfg.Storage.InMemory {
		config.Storage.InMemory = true
	}
	if yamlCfg.Storage.SyncWrites {
		config.Storage.SyncWrites = true
	}

	// === Planner Settings ===
	if yamlCfg.Planner.PlanCacheEnabled {
		config.Planner.PlanCacheEnabled = true
	}
	if yamlCfg.Planner.PlanCacheSize > 0 {
		config.Planner.PlanCacheSize = yamlCfg.Planner.PlanCacheSize
	}

	// === Tracing Settings ===
	if yamlCfg.Tracing.Enabled {
		config.Tracing.Enabled = true
	}
	if yamlCfg.Tracing.Endpoint != "" {
		config.Tracing.Endpoint = yamlCfg.Tracing.Endpoint
	}
	if yamlCfg.Tracing.ServiceName != "" {
		config.Tracing.ServiceName = yamlCfg.Tracing.ServiceName
	}
	if yamlCfg.Tracing.SampleRatio > 0 {
		config.Tracing.SampleRatio = yamlCfg.Tracing.SampleRatio
	}

	// === Logging Settings ===
	if yamlCfg.Logging.Level != "" {
		config.Logging.Level = yamlCfg.Logging.Level
	}
	if yamlCfg.Logging.QueryLogEnabled {
		config.Logging.QueryLogEnabled = true
	}
	if yamlCfg.Logging.SlowQueryThreshold != "" {
		if d, err := time.ParseDuration(yamlCfg.Logging.SlowQueryThreshold); err == nil {
			config.Logging.SlowQueryThreshold = d
		}
	}

	// Environment variables take precedence over the config file.
	applyEnvVars(config)

	return config, nil
}

// FindConfigFile searches for a config file in standard locations.
// Returns the path to the first config file found, or empty string if
// none found. Search order:
//  1. ~/.vegvisir/config.yaml
//  2. Same directory as the binary (config.yaml, vegvisir.yaml)
//  3. Current working directory (config.yaml, vegvisir.yaml)
//  4. ~/.config/vegvisir/config.yaml (XDG standard)
func FindConfigFile() string {
	var candidates []string

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".vegvisir", "config.yaml"))
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(exeDir, "config.yaml"),
			filepath.Join(exeDir, "vegvisir.yaml"),
		)
	}

	candidates = append(candidates,
		"config.yaml",
		"vegvisir.yaml",
	)

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "vegvisir", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// Validate checks the configuration for logical errors and invalid
// values. Call Validate after loading and before using the Config.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendBadger:
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}

	if c.Storage.Backend == BackendBadger && !c.Storage.InMemory && c.Storage.DataDir == "" {
		return fmt.Errorf("badger backend requires a data directory")
	}

	if c.Planner.PlanCacheEnabled && c.Planner.PlanCacheSize <= 0 {
		return fmt.Errorf("invalid plan cache size: %d", c.Planner.PlanCacheSize)
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing enabled but no endpoint provided")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample ratio must be within [0, 1], got %v", c.Tracing.SampleRatio)
	}

	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("unknown log level: %q", c.Logging.Level)
	}

	return nil
}

// String returns a short representation of the Config, suitable for
// startup logging.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Backend: %s, DataDir: %s, PlanCache: %d, Tracing: %v}",
		c.Storage.Backend,
		c.Storage.DataDir,
		c.Planner.PlanCacheSize,
		c.Tracing.Enabled,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		// Plain numbers are taken as seconds.
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}
