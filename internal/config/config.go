package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Business  BusinessConfig  `mapstructure:"business"`
	Health    HealthConfig    `mapstructure:"health"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"DATABASE_DRIVER"`
	URL    string `mapstructure:"DATABASE_URL"`
}

type RedisConfig struct {
	URL      string `mapstructure:"REDIS_URL"`
	CacheTTL string `mapstructure:"REPORT_CACHE_TTL"`
}

type SchedulerConfig struct {
	SweepSpec      string `mapstructure:"SCHEDULER_SWEEP_SPEC"`
	ReminderSpec   string `mapstructure:"SCHEDULER_REMINDER_SPEC"`
	ReminderWindow string `mapstructure:"REMINDER_WINDOW"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type BusinessConfig struct {
	MaxLoansPerMember int    `mapstructure:"MAX_LOANS_PER_MEMBER"`
	LoanPeriodDays    int    `mapstructure:"LOAN_PERIOD_DAYS"`
	FineDailyRate     string `mapstructure:"FINE_DAILY_RATE"`
	GracePeriodDays   int    `mapstructure:"GRACE_PERIOD_DAYS"`
	Timezone          string `mapstructure:"LEDGER_TIMEZONE"`
}

type HealthConfig struct {
	Timeout string `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// sections maps each nested struct to the flat keys it decodes.
var sections = map[string][]string{
	"database":  {"DATABASE_DRIVER", "DATABASE_URL"},
	"redis":     {"REDIS_URL", "REPORT_CACHE_TTL"},
	"scheduler": {"SCHEDULER_SWEEP_SPEC", "SCHEDULER_REMINDER_SPEC", "REMINDER_WINDOW"},
	"logging":   {"LOG_LEVEL", "LOG_FORMAT"},
	"business":  {"MAX_LOANS_PER_MEMBER", "LOAN_PERIOD_DAYS", "FINE_DAILY_RATE", "GRACE_PERIOD_DAYS", "LEDGER_TIMEZONE"},
	"health":    {"HEALTH_CHECK_TIMEOUT"},
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("DATABASE_DRIVER", DriverSQLite)
	v.SetDefault("DATABASE_URL", "data/library.db")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REPORT_CACHE_TTL", "1m")
	v.SetDefault("SCHEDULER_SWEEP_SPEC", "0 0 0 * * *")
	v.SetDefault("SCHEDULER_REMINDER_SPEC", "0 0 9 * * *")
	v.SetDefault("REMINDER_WINDOW", "72h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("MAX_LOANS_PER_MEMBER", 5)
	v.SetDefault("LOAN_PERIOD_DAYS", 14)
	v.SetDefault("FINE_DAILY_RATE", "0.50")
	v.SetDefault("GRACE_PERIOD_DAYS", 0)
	v.SetDefault("LEDGER_TIMEZONE", "UTC")
	v.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")

	// Read from environment variables
	v.AutomaticEnv()

	// Try to read from .env file (optional)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./deployments")

	// Don't fail if .env file doesn't exist
	_ = v.ReadInConfig()

	// Keys are flat in the environment but nested in Config.
	for section, sectionKeys := range sections {
		for _, key := range sectionKeys {
			v.Set(section+"."+key, v.Get(key))
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the configuration Load produces with an empty environment.
func Default() *Config {
	return &Config{
		Database:  DatabaseConfig{Driver: DriverSQLite, URL: "data/library.db"},
		Redis:     RedisConfig{CacheTTL: "1m"},
		Scheduler: SchedulerConfig{SweepSpec: "0 0 0 * * *", ReminderSpec: "0 0 9 * * *", ReminderWindow: "72h"},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Business: BusinessConfig{
			MaxLoansPerMember: 5,
			LoanPeriodDays:    14,
			FineDailyRate:     "0.50",
			Timezone:          "UTC",
		},
		Health: HealthConfig{Timeout: "5s"},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Driver != DriverSQLite && c.Database.Driver != DriverPostgres {
		return fmt.Errorf("DATABASE_DRIVER must be %q or %q", DriverSQLite, DriverPostgres)
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Business.MaxLoansPerMember <= 0 {
		return fmt.Errorf("MAX_LOANS_PER_MEMBER must be greater than 0")
	}

	if c.Business.LoanPeriodDays <= 0 {
		return fmt.Errorf("LOAN_PERIOD_DAYS must be greater than 0")
	}

	if c.Business.GracePeriodDays < 0 {
		return fmt.Errorf("GRACE_PERIOD_DAYS must not be negative")
	}

	rate, err := decimal.NewFromString(c.Business.FineDailyRate)
	if err != nil {
		return fmt.Errorf("FINE_DAILY_RATE must be a valid decimal: %w", err)
	}
	if rate.IsNegative() {
		return fmt.Errorf("FINE_DAILY_RATE must not be negative")
	}

	if _, err := time.LoadLocation(c.Business.Timezone); err != nil {
		return fmt.Errorf("LEDGER_TIMEZONE must be a valid location: %w", err)
	}

	if _, err := time.ParseDuration(c.Redis.CacheTTL); err != nil {
		return fmt.Errorf("REPORT_CACHE_TTL must be a valid duration: %w", err)
	}

	if _, err := time.ParseDuration(c.Scheduler.ReminderWindow); err != nil {
		return fmt.Errorf("REMINDER_WINDOW must be a valid duration: %w", err)
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.Scheduler.SweepSpec); err != nil {
		return fmt.Errorf("SCHEDULER_SWEEP_SPEC must be a valid cron spec: %w", err)
	}
	if _, err := parser.Parse(c.Scheduler.ReminderSpec); err != nil {
		return fmt.Errorf("SCHEDULER_REMINDER_SPEC must be a valid cron spec: %w", err)
	}

	// Validate health check timeout
	if _, err := time.ParseDuration(c.Health.Timeout); err != nil {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be a valid duration: %w", err)
	}

	return nil
}

// GetFineDailyRate returns the daily fine rate as decimal
func (c *Config) GetFineDailyRate() decimal.Decimal {
	rate, _ := decimal.NewFromString(c.Business.FineDailyRate)
	return rate
}

// GetLocation returns the location used for calendar-day arithmetic
func (c *Config) GetLocation() *time.Location {
	loc, err := time.LoadLocation(c.Business.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetCacheTTL returns the report cache TTL as duration
func (c *Config) GetCacheTTL() time.Duration {
	ttl, _ := time.ParseDuration(c.Redis.CacheTTL)
	return ttl
}

// GetReminderWindow returns how far ahead the reminder job looks
func (c *Config) GetReminderWindow() time.Duration {
	window, _ := time.ParseDuration(c.Scheduler.ReminderWindow)
	return window
}

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Health.Timeout)
	return timeout
}
