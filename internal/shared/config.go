package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Bootstrap BootstrapConfig `toml:"bootstrap"`
	Superuser SuperuserConfig `toml:"superuser"`
	Runner    RunnerConfig    `toml:"runner"`
	Paths     PathsConfig     `toml:"paths"`
	Server    ServerConfig    `toml:"server"`
	Log       LogConfig       `toml:"log"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver       string `toml:"driver" env:"CRM_DATABASE_DRIVER"`
	DSN          string `toml:"dsn" env:"DATABASE_URL"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// BootstrapConfig controls the setupdata pipeline.
type BootstrapConfig struct {
	Testing      bool        `toml:"testing" env:"CRM_TESTING"`
	SkipFixtures bool        `toml:"skip_fixtures"`
	FixturesDir  string      `toml:"fixtures_dir" env:"CRM_FIXTURES_DIR"`
	Migrate      RetryConfig `toml:"migrate"`
	Fixture      RetryConfig `toml:"fixture"`
}

// RetryConfig describes one phase's retry bound and backoff.
//
// With Linear set the wait after attempt i (0-based) is (i+1)*Backoff.
type RetryConfig struct {
	Attempts int      `toml:"attempts"`
	Backoff  Duration `toml:"backoff"`
	Linear   bool     `toml:"linear"`
}

// SuperuserConfig holds the credential record for superuser provisioning.
type SuperuserConfig struct {
	Username string `toml:"username" env:"DJANGO_SUPERUSER_USERNAME"`
	Email    string `toml:"email" env:"DJANGO_SUPERUSER_EMAIL"`
	Password string `toml:"password" env:"DJANGO_SUPERUSER_PASSWORD"`
}

// RunnerConfig configures the standalone child-process migration runner.
type RunnerConfig struct {
	Command        []string `toml:"command"`
	Timeout        Duration `toml:"timeout"`
	Attempts       int      `toml:"attempts"`
	BackoffStep    Duration `toml:"backoff_step"`
	SettingsModule string   `toml:"settings_module"`
}

// PathsConfig locates the runtime directories the web entrypoint needs.
type PathsConfig struct {
	BaseDir    string `toml:"base_dir" env:"CRM_BASE_DIR"`
	MediaRoot  string `toml:"media_root"`
	StaticRoot string `toml:"static_root"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host      string  `toml:"host"`
	Port      int     `toml:"port" env:"PORT"`
	RateLimit float64 `toml:"rate_limit"`
	Burst     int     `toml:"burst"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level" env:"CRM_LOG_LEVEL"`
}

// TelemetryConfig controls trace export. Export is off unless an endpoint is set.
type TelemetryConfig struct {
	Enabled     bool   `toml:"enabled" env:"CRM_OTEL_ENABLED"`
	Endpoint    string `toml:"endpoint" env:"CRM_OTEL_ENDPOINT"`
	ServiceName string `toml:"service_name"`
}

// Duration is a [time.Duration] that reads and writes as text ("2s", "1m30s").
type Duration struct {
	time.Duration
}

// Seconds builds a [Duration] from whole seconds.
func Seconds(n int) Duration {
	return Duration{time.Duration(n) * time.Second}
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = parsed
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Load resolves configuration for a command: the file at path when it exists, the embedded defaults otherwise, then
// environment overrides.
func Load(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overlays environment variables onto config. Unset variables leave values untouched.
func ApplyEnv(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("failed to parse env: %w", err)
	}
	return nil
}

// Validate checks the values the bootstrap pipeline depends on.
func (c *Config) Validate() error {
	if _, err := DialectFor(c.Database.Driver); err != nil {
		return err
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("%w: database.dsn is required", ErrInvalidConfig)
	}
	if c.Bootstrap.Migrate.Attempts < 1 || c.Bootstrap.Fixture.Attempts < 1 || c.Runner.Attempts < 1 {
		return fmt.Errorf("%w: retry attempts must be at least 1", ErrInvalidConfig)
	}
	if c.Runner.Timeout.Duration <= 0 {
		return fmt.Errorf("%w: runner.timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path as TOML, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	if config == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}
