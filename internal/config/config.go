// Package config handles the XDG configuration directory and the settings
// loaded from config.yaml, .env and TASKLIST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// AppName is the application directory name.
	AppName = "tasklist"

	// ConfigFile is the optional settings file in the config directory.
	ConfigFile = "config.yaml"

	// EnvFile is the optional dotenv file in the config directory.
	EnvFile = ".env"

	// EnvPrefix prefixes every environment override: TASKLIST_API_URL
	// overrides api.url.
	EnvPrefix = "TASKLIST"
)

// Session backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Defaults.
const (
	DefaultAPIURL     = "http://localhost:8001/api"
	DefaultAPITimeout = 10 * time.Second
	DefaultRedisAddr  = "localhost:6379"
	DefaultSessionTTL = 24 * time.Hour
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string `mapstructure:"-"`

	// Debug enables debug logging.
	Debug bool `mapstructure:"-"`

	// Quiet suppresses informational output.
	Quiet bool `mapstructure:"-"`

	API     APIConfig     `mapstructure:"api"`
	Session SessionConfig `mapstructure:"session"`
	Tasks   TasksConfig   `mapstructure:"tasks"`
	Auth    AuthConfig    `mapstructure:"auth"`

	fileUsed string
}

// APIConfig configures the HTTP client.
type APIConfig struct {
	URL     string        `mapstructure:"url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// SessionConfig selects where credentials are kept.
type SessionConfig struct {
	Backend   string        `mapstructure:"backend" validate:"oneof=memory file redis"`
	RedisAddr string        `mapstructure:"redis_addr" validate:"required_if=Backend redis"`
	TTL       time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// TasksConfig configures the task repository.
type TasksConfig struct {
	DegradeOnFailure bool `mapstructure:"degrade_on_failure"`
}

// AuthConfig configures session checks.
type AuthConfig struct {
	// VerifyOnStart asks the server to verify the token before every command
	// that needs a session.
	VerifyOnStart bool `mapstructure:"verify_on_start"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// New loads the configuration for configDir. If configDir is empty, uses
// XDG_CONFIG_HOME/tasklist or $HOME/.config/tasklist.
//
// Precedence, highest first: environment, .env file, config.yaml, defaults.
// Missing files are not an error.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}

	if err := godotenv.Load(filepath.Join(dir, EnvFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", EnvFile, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(filepath.Join(dir, ConfigFile))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{Dir: dir}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.fileUsed = v.ConfigFileUsed()
	if _, err := os.Stat(cfg.fileUsed); err != nil {
		cfg.fileUsed = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.url", DefaultAPIURL)
	v.SetDefault("api.timeout", DefaultAPITimeout)
	v.SetDefault("session.backend", BackendFile)
	v.SetDefault("session.redis_addr", DefaultRedisAddr)
	v.SetDefault("session.ttl", DefaultSessionTTL)
	v.SetDefault("tasks.degrade_on_failure", true)
	v.SetDefault("auth.verify_on_start", false)
}

// Validate checks the loaded settings. Call it again after applying flag
// overrides.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("invalid config: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", configKey(fe), fe.Tag()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// configKey turns a validator namespace like Config.API.URL into api.url.
func configKey(fe validator.FieldError) string {
	ns := strings.TrimPrefix(fe.StructNamespace(), "Config.")
	switch ns {
	case "Session.RedisAddr":
		return "session.redis_addr"
	default:
		return strings.ToLower(ns)
	}
}

// FileUsed returns the config file that was read, or "" when none was.
func (c *Config) FileUsed() string {
	return c.fileUsed
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}
