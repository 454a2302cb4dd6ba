// Package config loads portal-engine configuration from config.yaml with
// environment variable overrides. Secrets (database password, OAuth client
// secret, session secret) must come from environment variables only.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for portal-engine.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// SessionSecret signs the short-lived OAuth flow cookies.
	SessionSecret string `yaml:"-" env:"SESSION_SECRET" env-default:"dev-only-session-secret"`

	Database  DatabaseConfig  `yaml:"database"`
	Provider  ProviderConfig  `yaml:"provider"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// MigrationsPath is the directory holding SQL migrations.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"portal"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"portal_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ProviderConfig holds the upstream weather/air-quality data provider
// endpoints and the bounds applied to every outbound call.
type ProviderConfig struct {
	WeatherBaseURL    string        `yaml:"weather_base_url" env:"PROVIDER_WEATHER_BASE_URL" env-default:"https://api.open-meteo.com/v1/forecast"`
	AirQualityBaseURL string        `yaml:"air_quality_base_url" env:"PROVIDER_AIR_QUALITY_BASE_URL" env-default:"https://air-quality-api.open-meteo.com/v1/air-quality"`
	Timeout           time.Duration `yaml:"timeout" env:"PROVIDER_TIMEOUT" env-default:"10s"`
	// MaxRetries bounds the single-retry policy for transient failures.
	MaxRetries int `yaml:"max_retries" env:"PROVIDER_MAX_RETRIES" env-default:"1"`
}

// OAuthConfig holds the third-party design-tool OAuth client configuration.
type OAuthConfig struct {
	// ProviderName appears in the /api/auth/{provider} routes.
	ProviderName string `yaml:"provider_name" env:"OAUTH_PROVIDER_NAME" env-default:"canva"`
	ClientID     string `yaml:"client_id" env:"OAUTH_CLIENT_ID" env-default:""`
	ClientSecret string `yaml:"-" env:"OAUTH_CLIENT_SECRET"` // Secret - not in YAML
	AuthorizeURL string `yaml:"authorize_url" env:"OAUTH_AUTHORIZE_URL" env-default:"https://www.canva.com/api/oauth/authorize"`
	TokenURL     string `yaml:"token_url" env:"OAUTH_TOKEN_URL" env-default:"https://api.canva.com/rest/v1/oauth/token"`
	ValidateURL  string `yaml:"validate_url" env:"OAUTH_VALIDATE_URL" env-default:"https://api.canva.com/rest/v1/users/me"`
	AssetsURL    string `yaml:"assets_url" env:"OAUTH_ASSETS_URL" env-default:"https://api.canva.com/rest/v1/assets"`
	ScopesStr    string `yaml:"scopes" env:"OAUTH_SCOPES" env-default:"asset:read design:meta:read"`
	// RedirectPath is appended to BaseURL to build the redirect URI.
	RedirectPath string `yaml:"redirect_path" env:"OAUTH_REDIRECT_PATH" env-default:"/api/auth/callback"`
	// SettingsPath is where the browser lands after the callback.
	SettingsPath string `yaml:"settings_path" env:"OAUTH_SETTINGS_PATH" env-default:"/dashboard/settings"`

	// Scopes is parsed from ScopesStr at load time.
	Scopes []string `yaml:"-"`
}

// SchedulerConfig holds the periodic refresh settings.
type SchedulerConfig struct {
	Enabled bool `yaml:"enabled" env:"SCHEDULER_ENABLED" env-default:"true"`
	// Interval between current-observation and forecast-window refreshes.
	Interval time.Duration `yaml:"interval" env:"SCHEDULER_INTERVAL" env-default:"15m"`
	// ForecastDays is the forecast window length requested from the provider.
	ForecastDays int `yaml:"forecast_days" env:"SCHEDULER_FORECAST_DAYS" env-default:"7"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		// Fall back to pure environment configuration when no YAML is present.
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read configuration: %w", err)
		}
	}

	cfg.OAuth.Scopes = strings.Fields(cfg.OAuth.ScopesStr)

	if cfg.Scheduler.ForecastDays < 1 || cfg.Scheduler.ForecastDays > 16 {
		return nil, fmt.Errorf("scheduler forecast_days must be in 1..16, got %d", cfg.Scheduler.ForecastDays)
	}

	// Auto-derive BaseURL from Port if not explicitly set.
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// RedirectURI returns the absolute OAuth redirect URI.
func (c *Config) RedirectURI() string {
	return strings.TrimRight(c.BaseURL, "/") + c.OAuth.RedirectPath
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
