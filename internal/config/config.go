package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "SUMU"
	defaultHTTPAddress  = "127.0.0.1:7341"
	defaultDatabasePath = "sumu-sync.db"
	defaultLogLevel     = "info"
)

// AppConfig captures runtime configuration for the sync agent.
type AppConfig struct {
	HTTPAddress    string
	BackendBaseURL string
	ProbeURL       string
	DatabasePath   string
	WebOrigin      string
	SessionToken   string
	LogLevel       string
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
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		BackendBaseURL: configViper.GetString("backend.base_url"),
		ProbeURL:       configViper.GetString("backend.probe_url"),
		DatabasePath:   configViper.GetString("database.path"),
		WebOrigin:      configViper.GetString("web.origin"),
		SessionToken:   configViper.GetString("session.token"),
		LogLevel:       configViper.GetString("log.level"),
	}

	if cfg.ProbeURL == "" {
		cfg.ProbeURL = cfg.BackendBaseURL
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.BackendBaseURL) == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}
