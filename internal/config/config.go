package config

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/lexicon/internal/messages"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix                = "LEXICON"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabaseDriver    = "sqlite"
	defaultDatabasePath      = "lexicon.db"
	defaultLogLevel          = "info"
	defaultLogFormat         = "json"
	defaultWriteConcurrency  = 8
	defaultCORSAllowedOrigin = "*"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	DatabaseDriver     string
	DatabasePath       string
	DatabaseDSN        string
	LogLevel           string
	LogFormat          string
	BaseLanguage       string
	DefaultMaintainer  string
	SharedTranslations bool
	WriteConcurrency   int
	CORSAllowedOrigins []string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.dsn", "")
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("messages.base_language", messages.DefaultBaseLanguage)
	configViper.SetDefault("messages.default_maintainer", messages.DefaultMaintainer)
	configViper.SetDefault("messages.shared_translations", false)
	configViper.SetDefault("messages.write_concurrency", defaultWriteConcurrency)
	configViper.SetDefault("cors.allowed_origins", defaultCORSAllowedOrigin)
}

// LoadDotEnv overlays variables from a .env file onto the process environment.
// A missing file is not an error.
func LoadDotEnv(path string) {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	_ = godotenv.Overload(path)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		DatabaseDriver:     strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:       configViper.GetString("database.path"),
		DatabaseDSN:        configViper.GetString("database.dsn"),
		LogLevel:           configViper.GetString("log.level"),
		LogFormat:          configViper.GetString("log.format"),
		BaseLanguage:       strings.TrimSpace(configViper.GetString("messages.base_language")),
		DefaultMaintainer:  configViper.GetString("messages.default_maintainer"),
		SharedTranslations: configViper.GetBool("messages.shared_translations"),
		WriteConcurrency:   configViper.GetInt("messages.write_concurrency"),
		CORSAllowedOrigins: splitList(configViper.GetString("cors.allowed_origins")),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	switch c.DatabaseDriver {
	case "sqlite":
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required")
		}
	case "mysql":
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for the mysql driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.DatabaseDriver)
	}
	if err := messages.ValidateLanguage(c.BaseLanguage); err != nil {
		return fmt.Errorf("messages.base_language: %w", err)
	}
	if c.WriteConcurrency < 0 {
		return fmt.Errorf("messages.write_concurrency must not be negative")
	}
	return nil
}

func splitList(raw string) []string {
	var values []string
	for _, segment := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(segment); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
