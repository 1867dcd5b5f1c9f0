package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/decision"
	"github.com/tiger965/Tiger-System-Rebuild-sub004/internal/trigger"
)

// RecorderDisabled as database.sqlite_path turns persistence off.
const RecorderDisabled = "none"

// Config holds all application configuration.
type Config struct {
	Log      LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Server   ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Telegram TelegramConfig  `yaml:"telegram" envPrefix:"TELEGRAM_"`
	Database DatabaseConfig  `yaml:"database"`
	Redis    RedisConfig     `yaml:"redis" envPrefix:"REDIS_"`
	Trigger  TriggerConfig   `yaml:"trigger" envPrefix:"TRIGGER_"`
	Decision decision.Policy `yaml:"decision" envPrefix:"DECISION_"`
	Schedule ScheduleConfig  `yaml:"schedule" envPrefix:"CRON_"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" env:"FORMAT" default:"console" validate:"oneof=json console"`
	Output string `yaml:"output" env:"OUTPUT" default:"stdout"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR" default:":8080" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token" env:"BOT_TOKEN"`
	ChatID   string `yaml:"chat_id" env:"CHAT_ID" validate:"required_with=BotToken"`
	Proxy    string `yaml:"proxy" env:"PROXY" validate:"omitempty,url"`
}

// Enabled reports whether alerts and commands go through Telegram.
func (t TelegramConfig) Enabled() bool { return t.BotToken != "" }

type DatabaseConfig struct {
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH" default:"data/sentinel.db"`
}

func (d DatabaseConfig) Enabled() bool { return d.SQLitePath != RecorderDisabled }

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Addr     string `yaml:"addr" env:"ADDR" default:"localhost:6379" validate:"required_if=Enabled true"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB" validate:"gte=0"`
	Prefix   string `yaml:"prefix" env:"PREFIX" default:"sentinel:cooldown:"`
}

type TriggerConfig struct {
	Cooldown             time.Duration  `yaml:"cooldown" env:"COOLDOWN" default:"5m" validate:"gte=0"`
	Tiers                []trigger.Tier `yaml:"tiers" validate:"omitempty,len=3"`
	SocialSpike          float64        `yaml:"social_spike" env:"SOCIAL_SPIKE" default:"3" validate:"gt=0"`
	NewsImportance       int            `yaml:"news_importance" env:"NEWS_IMPORTANCE" default:"7" validate:"gte=1,lte=10"`
	BullFactor           float64        `yaml:"bull_factor" env:"BULL_FACTOR" default:"1.25"`
	BearFactor           float64        `yaml:"bear_factor" env:"BEAR_FACTOR" default:"1.5"`
	HighVolatilityFactor float64        `yaml:"high_volatility_factor" env:"HIGH_VOLATILITY_FACTOR" default:"0.75"`
}

// Thresholds builds the baseline ThresholdSet, falling back to the stock tiers.
func (t TriggerConfig) Thresholds() trigger.ThresholdSet {
	th := trigger.DefaultThresholds()
	if len(t.Tiers) == 3 {
		copy(th.Tiers[:], t.Tiers)
	}
	th.SocialSpike = t.SocialSpike
	th.NewsImportance = t.NewsImportance
	return th
}

func (t TriggerConfig) RegimeFactors() trigger.RegimeFactors {
	return trigger.RegimeFactors{Bull: t.BullFactor, Bear: t.BearFactor, HighVolatility: t.HighVolatilityFactor}
}

// ScheduleConfig uses cron expressions with a leading seconds field.
type ScheduleConfig struct {
	PruneCron string `yaml:"prune_cron" env:"PRUNE" default:"0 * * * * *"`
	StatsCron string `yaml:"stats_cron" env:"STATS" default:"0 0 * * * *"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults, then validates. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and the cross-field invariants of the
// trigger thresholds and decision policy.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if err := c.Trigger.Thresholds().Validate(); err != nil {
		return fmt.Errorf("trigger: %w", err)
	}
	if err := c.Trigger.RegimeFactors().ValidateFor(c.Trigger.Thresholds()); err != nil {
		return fmt.Errorf("trigger: %w", err)
	}
	if err := c.Decision.Validate(); err != nil {
		return fmt.Errorf("decision: %w", err)
	}
	return nil
}
