package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Plans     PlansConfig     `mapstructure:"plans"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	Webhooks  WebhooksConfig  `mapstructure:"webhooks"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

type PlansConfig struct {
	Free PlanConfig `mapstructure:"free"`
	Pro  PlanConfig `mapstructure:"pro"`
}

type PlanConfig struct {
	MaxEventsPerMonth  int `mapstructure:"max_events_per_month"`
	MaxEventCategories int `mapstructure:"max_event_categories"`
	MaxWebhooks        int `mapstructure:"max_webhooks"` // -1 means unlimited
}

// Limits returns the ceilings for a plan tier, defaulting to the free plan.
func (p PlansConfig) Limits(plan string) PlanConfig {
	if plan == "PRO" {
		return p.Pro
	}
	return p.Free
}

type DiscordConfig struct {
	BotToken   string        `mapstructure:"bot_token"`
	APIBaseURL string        `mapstructure:"api_base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type WebhooksConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("rate_limit.max_requests", 100)
	viper.SetDefault("rate_limit.window", time.Hour)
	viper.SetDefault("plans.free.max_events_per_month", 100)
	viper.SetDefault("plans.free.max_event_categories", 3)
	viper.SetDefault("plans.free.max_webhooks", 1)
	viper.SetDefault("plans.pro.max_events_per_month", 1000)
	viper.SetDefault("plans.pro.max_event_categories", 10)
	viper.SetDefault("plans.pro.max_webhooks", -1)
	viper.SetDefault("discord.api_base_url", "https://discord.com/api/v10")
	viper.SetDefault("discord.timeout", 10*time.Second)
	viper.SetDefault("webhooks.timeout", 10*time.Second)
	viper.SetDefault("jwt.access_token_ttl", 15*time.Minute)
	viper.SetDefault("logging.level", "info")
}
