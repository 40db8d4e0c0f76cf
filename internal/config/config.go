// Package config reads opsdeck settings from the environment.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/sadopc/opsdeck/internal/store"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Duration parses "12h", "30m" or a bare number of seconds.
type Duration time.Duration

func (d *Duration) SetValue(data string) error {
	v, err := parseDuration(data)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func parseDuration(s string) (time.Duration, error) {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("duration must be like 12h, 30m or a number of seconds: %w", err)
	}
	return d, nil
}

type Config struct {
	App     AppConfig
	DB      DBConfig
	Log     LogConfig
	Auth    AuthConfig
	Admin   AdminConfig
	Invite  InviteConfig
	Reports ReportsConfig
}

type AppConfig struct {
	Env string `env:"OPSDECK_ENV" env-default:"prod"`
}

type DBConfig struct {
	// Path defaults to ~/.config/opsdeck/opsdeck.db when empty.
	Path string `env:"OPSDECK_DB" env-default:""`
}

type LogConfig struct {
	Path string `env:"OPSDECK_LOG" env-default:""`
}

type AuthConfig struct {
	SessionTTL Duration `env:"OPSDECK_SESSION_TTL" env-default:"12h"`
	ResetTTL   Duration `env:"OPSDECK_RESET_TTL" env-default:"72h"`
}

// AdminConfig seeds the first account on an empty database.
type AdminConfig struct {
	Email    string `env:"OPSDECK_ADMIN_EMAIL" env-default:""`
	Password string `env:"OPSDECK_ADMIN_PASSWORD" env-default:""`
}

type InviteConfig struct {
	// Addr enables the invitation endpoint when set, e.g. ":8087".
	Addr         string   `env:"OPSDECK_INVITE_ADDR" env-default:""`
	AllowOrigins []string `env:"OPSDECK_INVITE_ORIGINS" env-default:"*" env-separator:","`
}

type ReportsConfig struct {
	ExpiryHorizonDays int `env:"OPSDECK_EXPIRY_HORIZON_DAYS" env-default:"30"`
}

// Load reads the environment and fills in paths derived from the home
// directory.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	switch cfg.App.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return Config{}, fmt.Errorf("OPSDECK_ENV: unknown environment %q", cfg.App.Env)
	}
	if cfg.DB.Path == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return Config{}, err
		}
		cfg.DB.Path = p
	}
	if cfg.Log.Path == "" {
		cfg.Log.Path = strings.TrimSuffix(cfg.DB.Path, ".db") + ".log"
	}
	if cfg.Auth.SessionTTL.Duration() <= 0 {
		return Config{}, fmt.Errorf("OPSDECK_SESSION_TTL must be positive")
	}
	if cfg.Reports.ExpiryHorizonDays <= 0 {
		return Config{}, fmt.Errorf("OPSDECK_EXPIRY_HORIZON_DAYS must be positive")
	}
	return cfg, nil
}

// Usage describes every variable Load reads.
func Usage() string {
	var cfg Config
	desc, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return desc
}
