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

const envPrefix = "XSSLAB_"

// Config represents the application configuration
type Config struct {
	// General settings
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	OutputDir string `yaml:"output_dir"`

	Server   ServerConfig   `yaml:"server"`
	Fuzz     FuzzConfig     `yaml:"fuzz"`
	Scan     ScanConfig     `yaml:"scan"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Progress ProgressConfig `yaml:"progress"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxBodySize  int           `yaml:"max_body_size"`
	CORSOrigin   string        `yaml:"cors_origin"`
}

type FuzzConfig struct {
	MaxPayloadLength int `yaml:"max_payload_length"`
	DefaultLimit     int `yaml:"default_limit"`
	MaxLimit         int `yaml:"max_limit"`
}

type ScanConfig struct {
	MaxCodeSize      int    `yaml:"max_code_size"`
	DefaultFramework string `yaml:"default_framework"`
}

type FetchConfig struct {
	UserAgent      string        `yaml:"user_agent"`
	Timeout        time.Duration `yaml:"timeout"`
	VerifySSL      bool          `yaml:"verify_ssl"`
	Proxy          string        `yaml:"proxy"`
	FollowExternal bool          `yaml:"follow_external"`
	MaxBodySize    int           `yaml:"max_body_size"`
}

type ProgressConfig struct {
	Backend       string        `yaml:"backend"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	Path          string        `yaml:"path"`
	TTL           time.Duration `yaml:"ttl"`
}

// Default returns a configuration populated with built-in defaults
func Default() *Config {
	config := &Config{}
	setDefaults(config)
	return config
}

// Load loads configuration from file and environment variables.
// An empty path searches the standard locations.
func Load(path string) (*Config, error) {
	config := Default()

	if err := loadFromFile(config, path); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func setDefaults(config *Config) {
	config.LogLevel = "info"
	config.LogFormat = "text"
	config.OutputDir = "./output"

	config.Server = ServerConfig{
		Addr:         ":8080",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		MaxBodySize:  1 << 20,
		CORSOrigin:   "*",
	}

	config.Fuzz = FuzzConfig{
		MaxPayloadLength: 5000,
		DefaultLimit:     1,
		MaxLimit:         500,
	}

	config.Scan = ScanConfig{
		MaxCodeSize:      200000,
		DefaultFramework: "auto",
	}

	config.Fetch = FetchConfig{
		UserAgent:   "xsslab/1.0",
		Timeout:     15 * time.Second,
		VerifySSL:   true,
		MaxBodySize: 5 << 20,
	}

	config.Progress = ProgressConfig{
		Backend:   "file",
		RedisAddr: "localhost:6379",
		Path:      "~/.xsslab/progress.json",
		TTL:       0,
	}
}

func loadFromFile(config *Config, explicit string) error {
	if explicit != "" {
		return readFile(config, explicit)
	}

	configPaths := []string{
		"./configs/xsslab.yaml",
		ExpandPath("~/.xsslab.yaml"),
		"/etc/xsslab/config.yaml",
	}

	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			return readFile(config, path)
		}
	}

	// No config file found, use defaults
	return nil
}

func readFile(config *Config, path string) error {
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

func loadFromEnv(config *Config) error {
	strs := map[string]*string{
		"LOG_LEVEL":      &config.LogLevel,
		"LOG_FORMAT":     &config.LogFormat,
		"OUTPUT_DIR":     &config.OutputDir,
		"SERVER_ADDR":    &config.Server.Addr,
		"CORS_ORIGIN":    &config.Server.CORSOrigin,
		"USER_AGENT":     &config.Fetch.UserAgent,
		"PROXY":          &config.Fetch.Proxy,
		"PROGRESS":       &config.Progress.Backend,
		"REDIS_ADDR":     &config.Progress.RedisAddr,
		"REDIS_PASSWORD": &config.Progress.RedisPassword,
		"PROGRESS_PATH":  &config.Progress.Path,

		"DEFAULT_FRAMEWORK": &config.Scan.DefaultFramework,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MAX_PAYLOAD_LENGTH": &config.Fuzz.MaxPayloadLength,
		"MAX_CODE_SIZE":      &config.Scan.MaxCodeSize,
		"REDIS_DB":           &config.Progress.RedisDB,
	}
	for name, dst := range ints {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = n
	}

	if v, ok := os.LookupEnv(envPrefix + "VERIFY_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sVERIFY_SSL: %w", envPrefix, err)
		}
		config.Fetch.VerifySSL = b
	}

	return nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q: must be debug, info, warn or error", c.LogLevel)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log_format %q: must be text or json", c.LogFormat)
	}

	if c.Fuzz.MaxPayloadLength < 1 {
		return fmt.Errorf("invalid max_payload_length: must be positive")
	}

	if c.Fuzz.MaxLimit < 1 || c.Fuzz.MaxLimit > 500 {
		return fmt.Errorf("invalid max_limit: must be between 1 and 500")
	}

	if c.Fuzz.DefaultLimit < 1 || c.Fuzz.DefaultLimit > c.Fuzz.MaxLimit {
		return fmt.Errorf("invalid default_limit: must be between 1 and max_limit")
	}

	if c.Scan.MaxCodeSize < 1 {
		return fmt.Errorf("invalid max_code_size: must be positive")
	}

	switch c.Scan.DefaultFramework {
	case "auto", "vanilla", "react", "vue", "angular", "jquery":
	default:
		return fmt.Errorf("invalid default_framework %q: must be auto, vanilla, react, vue, angular or jquery", c.Scan.DefaultFramework)
	}

	if c.Fetch.Timeout <= 0 || c.Fetch.Timeout > 5*time.Minute {
		return fmt.Errorf("invalid fetch timeout: must be between 0 and 5m")
	}

	switch c.Progress.Backend {
	case "memory", "redis":
	case "file":
		if strings.TrimSpace(c.Progress.Path) == "" {
			return fmt.Errorf("progress path is required for the file backend")
		}
	default:
		return fmt.Errorf("invalid progress backend %q: must be memory, file or redis", c.Progress.Backend)
	}

	return nil
}

// ExpandPath resolves a leading ~/ against the home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
