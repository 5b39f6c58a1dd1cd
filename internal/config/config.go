package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrMissingEnvironmentVariables = errors.New("missing required environment variables")

// Config holds application configuration loaded from files and environment variables.
type Config struct {
	Env              string    `mapstructure:"env"` // current application environment (local, dev, production etc)
	TelegramAPIToken string    `mapstructure:"-"`   // optional, reminders are disabled without it
	HTTP             HTTP      `mapstructure:"http"`
	Auth             Auth      `mapstructure:"-"`
	DB               DB        `mapstructure:"database"`
	Redis            Redis     `mapstructure:"redis"`
	Scheduler        Scheduler `mapstructure:"scheduler"`
	Review           Review    `mapstructure:"review"`
	Reminders        Reminders `mapstructure:"reminders"`
	CORS             CORS      `mapstructure:"cors"`
}

type HTTP struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type Auth struct {
	JWTSecret string // HS256 signing key loaded from environment
}

// DB contains database-related configuration parameters.
type DB struct {
	URL               string        `mapstructure:"-"`                   // loaded from environment
	MaxConnections    int           `mapstructure:"max_connections"`     // maximum number of open connections in the pool
	MinConnections    int           `mapstructure:"min_connections"`     // connections kept open while idle
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`   // maximum lifetime of a single connection
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"` // how often idle connections are checked
}

// Redis is optional. Without an address review locks stay in-process.
type Redis struct {
	Addr         string        `mapstructure:"-"`
	Password     string        `mapstructure:"-"`
	DB           int           `mapstructure:"db"`
	LockPrefix   string        `mapstructure:"lock_prefix"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Scheduler holds the review scheduling knobs.
type Scheduler struct {
	DesiredRetention float64         `mapstructure:"desired_retention"`
	MaximumInterval  int             `mapstructure:"maximum_interval"` // days
	EnableFuzz       bool            `mapstructure:"enable_fuzz"`
	EnableShortTerm  bool            `mapstructure:"enable_short_term"`
	LearningSteps    []time.Duration `mapstructure:"learning_steps"`
	RelearningSteps  []time.Duration `mapstructure:"relearning_steps"`
}

type Review struct {
	MaxWriteAttempts int           `mapstructure:"max_write_attempts"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
}

type Reminders struct {
	Cron        string        `mapstructure:"cron"`
	StartHour   int           `mapstructure:"start_hour"`
	EndHour     int           `mapstructure:"end_hour"`
	MinInterval time.Duration `mapstructure:"min_interval"`
}

type CORS struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DSN returns the database connection string if it is configured.
func (db DB) DSN() (string, error) {
	if db.URL == "" {
		return "", ErrMissingEnvironmentVariables
	}
	return db.URL, nil
}

// Load reads configuration from an optional .env file, config files and
// environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // map nested keys to ENV style names
	v.AutomaticEnv()

	_ = v.BindEnv("telegram_api_token", "TELEGRAM_API_TOKEN")
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("redis_addr", "REDIS_ADDR")
	_ = v.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = v.BindEnv("env", "APP_ENV")

	if err := v.ReadInConfig(); err != nil {
		var fileLookupErr viper.ConfigFileNotFoundError
		if !errors.As(err, &fileLookupErr) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// Secrets only come from the environment.
	cfg.TelegramAPIToken = v.GetString("telegram_api_token")
	cfg.Redis.Addr = v.GetString("redis_addr")
	cfg.Redis.Password = v.GetString("redis_password")

	cfg.Auth.JWTSecret = v.GetString("jwt_secret")
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("%w: JWT_SECRET", ErrMissingEnvironmentVariables)
	}

	cfg.DB.URL = v.GetString("database_url")
	if cfg.DB.URL == "" {
		return nil, fmt.Errorf("%w: DATABASE_URL", ErrMissingEnvironmentVariables)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.request_timeout", "5s")
	v.SetDefault("http.shutdown_timeout", "10s")

	v.SetDefault("database.max_connections", 20)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.max_conn_lifetime", "30m")
	v.SetDefault("database.health_check_period", "1m")

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_prefix", "revision:lock:")
	v.SetDefault("redis.lock_ttl", "5s")
	v.SetDefault("redis.poll_interval", "25ms")

	v.SetDefault("scheduler.desired_retention", 0.9)
	v.SetDefault("scheduler.maximum_interval", 365)
	v.SetDefault("scheduler.enable_fuzz", true)
	v.SetDefault("scheduler.enable_short_term", true)
	v.SetDefault("scheduler.learning_steps", []string{"1m", "10m"})
	v.SetDefault("scheduler.relearning_steps", []string{"10m"})

	v.SetDefault("review.max_write_attempts", 3)
	v.SetDefault("review.retry_backoff", "20ms")

	v.SetDefault("reminders.cron", "0 * * * *")
	v.SetDefault("reminders.start_hour", 8)
	v.SetDefault("reminders.end_hour", 21)
	v.SetDefault("reminders.min_interval", "4h")

	v.SetDefault("cors.allow_origins", []string{"http://localhost:3000", "http://localhost:5173"})
}
