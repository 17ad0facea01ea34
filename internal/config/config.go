package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Identity    IdentityConfig
	Cooldown    CooldownConfig
	Redis       RedisConfig
	Context     ContextConfig
	Logger      LoggerConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// IdentityConfig points at the hosted identity service and carries the
// browser destinations embedded in outbound emails.
type IdentityConfig struct {
	BaseURL             string
	APIKey              string
	Timeout             time.Duration
	SiteURL             string
	VerificationPath    string
	PasswordResetPath   string
	OAuthCallbackPath   string
	AutoRefreshSessions bool
}

// CooldownConfig controls the email rate limiter and its persistence.
type CooldownConfig struct {
	Window        time.Duration
	Backend       string // "bolt" or "redis"
	BoltPath      string
	SweepSchedule string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "vidsum-auth"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Identity: IdentityConfig{
			BaseURL:             os.Getenv("IDENTITY_URL"),
			APIKey:              os.Getenv("IDENTITY_API_KEY"),
			Timeout:             getDuration("IDENTITY_TIMEOUT", 10*time.Second),
			SiteURL:             getString("SITE_URL", "http://localhost:3000"),
			VerificationPath:    getString("VERIFICATION_PATH", "/email-verification"),
			PasswordResetPath:   getString("PASSWORD_RESET_PATH", "/reset-password"),
			OAuthCallbackPath:   getString("OAUTH_CALLBACK_PATH", "/"),
			AutoRefreshSessions: getBool("IDENTITY_AUTO_REFRESH", true),
		},
		Cooldown: CooldownConfig{
			Window:        getDuration("COOLDOWN_WINDOW", 60*time.Second),
			Backend:       getString("COOLDOWN_BACKEND", "bolt"),
			BoltPath:      getString("BOLTDB_PATH", "./data/authstate.db"),
			SweepSchedule: getString("COOLDOWN_SWEEP_SCHEDULE", "@every 5m"),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
	}

	if cfg.Identity.BaseURL == "" {
		return nil, fmt.Errorf("IDENTITY_URL is required")
	}

	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// VerificationRedirectURL is the destination embedded in verification emails.
func (c *Config) VerificationRedirectURL() string {
	return c.Identity.SiteURL + c.Identity.VerificationPath
}

// PasswordResetRedirectURL is the destination embedded in reset emails.
func (c *Config) PasswordResetRedirectURL() string {
	return c.Identity.SiteURL + c.Identity.PasswordResetPath
}

// OAuthRedirectURL is where the OAuth provider sends the browser back.
func (c *Config) OAuthRedirectURL() string {
	return c.Identity.SiteURL + c.Identity.OAuthCallbackPath
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
