package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                   string   `mapstructure:"PORT"`
	Env                    string   `mapstructure:"ENV"`
	LogLevel               string   `mapstructure:"LOG_LEVEL"`
	DatabaseURL            string   `mapstructure:"DATABASE_URL"`
	DBMaxConns             int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns             int32    `mapstructure:"DB_MIN_CONNS"`
	SecretKey              string   `mapstructure:"SECRET_KEY"`
	Algorithm              string   `mapstructure:"ALGORITHM"`
	BotToken               string   `mapstructure:"BOT_TOKEN"`
	TelegramMaxAgeSeconds  int      `mapstructure:"TELEGRAM_MAX_AGE_SECONDS"`
	AccessExpiresMinutes   int      `mapstructure:"ACCESS_EXPIRES_MINUTES"`
	RefreshExpiresDays     int      `mapstructure:"REFRESH_EXPIRES_DAYS"`
	SweeperIntervalMinutes int      `mapstructure:"SWEEPER_INTERVAL_MINUTES"`
	ScheduleTimezone       string   `mapstructure:"SCHEDULE_TIMEZONE"`
	CORSOrigins            []string `mapstructure:"CORS_ORIGINS"`
	CookieSecure           bool     `mapstructure:"COOKIE_SECURE"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"SECRET_KEY", "ALGORITHM", "BOT_TOKEN", "TELEGRAM_MAX_AGE_SECONDS",
	"ACCESS_EXPIRES_MINUTES", "REFRESH_EXPIRES_DAYS", "SWEEPER_INTERVAL_MINUTES",
	"SCHEDULE_TIMEZONE", "CORS_ORIGINS", "COOKIE_SECURE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("ALGORITHM", "HS256")
	v.SetDefault("TELEGRAM_MAX_AGE_SECONDS", 86400)
	v.SetDefault("ACCESS_EXPIRES_MINUTES", 10)
	v.SetDefault("REFRESH_EXPIRES_DAYS", 30)
	v.SetDefault("SWEEPER_INTERVAL_MINUTES", 1)
	v.SetDefault("SCHEDULE_TIMEZONE", "UTC")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("COOKIE_SECURE", true)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks the settings needed by the serve and sweep commands. The
// migrate commands only need DATABASE_URL and skip it.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY is required")
	}
	if !c.IsDev() && len(c.SecretKey) < 32 {
		return fmt.Errorf("SECRET_KEY must be at least 32 bytes outside development, got %d", len(c.SecretKey))
	}
	switch c.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("ALGORITHM must be HS256, HS384 or HS512, got %q", c.Algorithm)
	}
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.AccessExpiresMinutes <= 0 {
		return fmt.Errorf("ACCESS_EXPIRES_MINUTES must be positive")
	}
	if c.RefreshExpiresDays <= 0 {
		return fmt.Errorf("REFRESH_EXPIRES_DAYS must be positive")
	}
	if c.SweeperIntervalMinutes <= 0 {
		return fmt.Errorf("SWEEPER_INTERVAL_MINUTES must be positive")
	}
	if c.TelegramMaxAgeSeconds < 0 {
		return fmt.Errorf("TELEGRAM_MAX_AGE_SECONDS must not be negative")
	}
	if _, err := time.LoadLocation(c.ScheduleTimezone); err != nil {
		return fmt.Errorf("SCHEDULE_TIMEZONE: %w", err)
	}
	return nil
}

func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessExpiresMinutes) * time.Minute
}

func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshExpiresDays) * 24 * time.Hour
}

func (c *Config) SweeperInterval() time.Duration {
	return time.Duration(c.SweeperIntervalMinutes) * time.Minute
}

func (c *Config) TelegramMaxAge() time.Duration {
	return time.Duration(c.TelegramMaxAgeSeconds) * time.Second
}

// Location returns the time zone slot wall-clock times are interpreted in.
// Validate must have succeeded; an unknown zone falls back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ScheduleTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
