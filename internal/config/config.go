package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

type APIConfig struct {
	Port              string `mapstructure:"PORT"`
	Addr              string `mapstructure:"TYCOON_API_ADDR"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	SupabaseURL       string `mapstructure:"SUPABASE_URL"`
	SupabaseAnonKey   string `mapstructure:"SUPABASE_ANON_KEY"`
	SupabaseJWTSecret string `mapstructure:"SUPABASE_JWT_SECRET"`
	RedisURL          string `mapstructure:"REDIS_URL"`
	AMQPURL           string `mapstructure:"AMQP_URL"`
	DefaultTimezone   string `mapstructure:"TYCOON_DEFAULT_TZ"`
	RateLimit         int    `mapstructure:"TYCOON_RATE_LIMIT"`
	CORSOrigins       string `mapstructure:"TYCOON_CORS_ORIGINS"`
	AutoMigrate       bool   `mapstructure:"TYCOON_AUTO_MIGRATE"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
}

type WorkerConfig struct {
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	RedisURL          string `mapstructure:"REDIS_URL"`
	AMQPURL           string `mapstructure:"AMQP_URL"`
	DefaultTimezone   string `mapstructure:"TYCOON_DEFAULT_TZ"`
	ReconcileSchedule string `mapstructure:"TYCOON_RECONCILE_SCHEDULE"`
	DividendSchedule  string `mapstructure:"TYCOON_DIVIDEND_SCHEDULE"`
	DividendBatch     int    `mapstructure:"TYCOON_DIVIDEND_BATCH"`
	RunOnce           bool   `mapstructure:"TYCOON_WORKER_RUN_ONCE"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
}

type CLIConfig struct {
	APIBaseURL string `mapstructure:"TYC_API_BASE_URL"`
}

func LoadAPI() (APIConfig, error) {
	viper.SetDefault("TYCOON_API_ADDR", ":8080")
	viper.SetDefault("TYCOON_DEFAULT_TZ", "UTC")
	viper.SetDefault("TYCOON_RATE_LIMIT", 120)
	viper.SetDefault("TYCOON_CORS_ORIGINS", "*")
	viper.SetDefault("TYCOON_AUTO_MIGRATE", true)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.AutomaticEnv()
	bindEnv("PORT", "TYCOON_API_ADDR", "DATABASE_URL", "SUPABASE_URL", "SUPABASE_ANON_KEY",
		"SUPABASE_JWT_SECRET", "REDIS_URL", "AMQP_URL", "TYCOON_DEFAULT_TZ", "TYCOON_RATE_LIMIT",
		"TYCOON_CORS_ORIGINS", "TYCOON_AUTO_MIGRATE", "LOG_LEVEL")

	var cfg APIConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.SupabaseURL = strings.TrimRight(strings.TrimSpace(cfg.SupabaseURL), "/")
	cfg.SupabaseAnonKey = strings.TrimSpace(cfg.SupabaseAnonKey)
	if port := strings.TrimSpace(cfg.Port); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Addr = port
	}

	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.SupabaseURL == "" {
		return cfg, fmt.Errorf("SUPABASE_URL is required")
	}
	if cfg.SupabaseAnonKey == "" {
		return cfg, fmt.Errorf("SUPABASE_ANON_KEY is required")
	}
	if cfg.RateLimit < 0 {
		return cfg, fmt.Errorf("TYCOON_RATE_LIMIT must not be negative")
	}
	return cfg, nil
}

// AllowedOrigins splits the comma separated CORS setting.
func (c APIConfig) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func LoadWorker() (WorkerConfig, error) {
	viper.SetDefault("TYCOON_DEFAULT_TZ", "UTC")
	viper.SetDefault("TYCOON_RECONCILE_SCHEDULE", "*/15 * * * *")
	viper.SetDefault("TYCOON_DIVIDEND_SCHEDULE", "* * * * *")
	viper.SetDefault("TYCOON_DIVIDEND_BATCH", 100)
	viper.SetDefault("TYCOON_WORKER_RUN_ONCE", false)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.AutomaticEnv()
	bindEnv("DATABASE_URL", "REDIS_URL", "AMQP_URL", "TYCOON_DEFAULT_TZ", "TYCOON_RECONCILE_SCHEDULE",
		"TYCOON_DIVIDEND_SCHEDULE", "TYCOON_DIVIDEND_BATCH", "TYCOON_WORKER_RUN_ONCE", "LOG_LEVEL")

	var cfg WorkerConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func LoadCLI() CLIConfig {
	viper.SetDefault("TYC_API_BASE_URL", "http://localhost:8080")
	viper.AutomaticEnv()
	bindEnv("TYC_API_BASE_URL")

	var cfg CLIConfig
	if err := viper.Unmarshal(&cfg); err != nil || strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = "http://localhost:8080"
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	return cfg
}

func bindEnv(keys ...string) {
	for _, k := range keys {
		_ = viper.BindEnv(k)
	}
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func SlogLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
