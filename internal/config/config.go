// Package config loads service settings from .env, an optional YAML file and
// ANALYTICS_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ANALYTICS_STORE_BACKEND.
const EnvPrefix = "ANALYTICS"

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig
	Logging    LoggingConfig
	Store      StoreConfig
	Cache      CacheConfig
	Pipeline   PipelineConfig
	Anomaly    AnomalyConfig
	Forecast   ForecastConfig
	Budget     BudgetConfig
	Classifier ClassifierConfig
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type StoreConfig struct {
	Backend         string // memory, firestore, postgres
	GCPProject      string
	CredentialsFile string
	PostgresDSN     string
}

type CacheConfig struct {
	Backend  string // memory, file, gcs, redis
	Dir      string
	Bucket   string
	Prefix   string
	RedisURL string
	// MaxAge expires artifacts; zero keeps them until invalidated.
	MaxAge time.Duration
}

type PipelineConfig struct {
	MinRecords int
}

type AnomalyConfig struct {
	Trees         int
	MaxSamples    int
	Contamination float64
	Seed          int64
}

type ForecastConfig struct {
	TrainingTimeout time.Duration
}

type BudgetConfig struct {
	Timezone   string
	MinRecords int
}

type ClassifierConfig struct {
	Strategy    string // bayes, keywords
	CorpusLimit int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8111")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:1234", "http://127.0.0.1:1234"})
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.gcp_project", "")
	v.SetDefault("store.credentials_file", "")
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.dir", "user_models")
	v.SetDefault("cache.bucket", "")
	v.SetDefault("cache.prefix", "models/")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.max_age", "0s")
	v.SetDefault("pipeline.min_records", 10)
	v.SetDefault("anomaly.trees", 100)
	v.SetDefault("anomaly.max_samples", 256)
	v.SetDefault("anomaly.contamination", 0.1)
	v.SetDefault("anomaly.seed", 42)
	v.SetDefault("forecast.training_timeout", "30s")
	v.SetDefault("budget.timezone", "UTC")
	v.SetDefault("budget.min_records", 1)
	v.SetDefault("classifier.strategy", "bayes")
	v.SetDefault("classifier.corpus_limit", 5000)
}

// Load reads configuration. A .env file in the working directory is loaded
// first if present; configFile may be empty, in which case ./config.yaml is
// used when it exists.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := fromViper(v)
	// PORT is the platform convention and wins over everything else.
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("server.port"),
			AllowedOrigins: v.GetStringSlice("server.allowed_origins"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Store: StoreConfig{
			Backend:         v.GetString("store.backend"),
			GCPProject:      v.GetString("store.gcp_project"),
			CredentialsFile: v.GetString("store.credentials_file"),
			PostgresDSN:     v.GetString("store.postgres_dsn"),
		},
		Cache: CacheConfig{
			Backend:  v.GetString("cache.backend"),
			Dir:      v.GetString("cache.dir"),
			Bucket:   v.GetString("cache.bucket"),
			Prefix:   v.GetString("cache.prefix"),
			RedisURL: v.GetString("cache.redis_url"),
			MaxAge:   v.GetDuration("cache.max_age"),
		},
		Pipeline: PipelineConfig{
			MinRecords: v.GetInt("pipeline.min_records"),
		},
		Anomaly: AnomalyConfig{
			Trees:         v.GetInt("anomaly.trees"),
			MaxSamples:    v.GetInt("anomaly.max_samples"),
			Contamination: v.GetFloat64("anomaly.contamination"),
			Seed:          v.GetInt64("anomaly.seed"),
		},
		Forecast: ForecastConfig{
			TrainingTimeout: v.GetDuration("forecast.training_timeout"),
		},
		Budget: BudgetConfig{
			Timezone:   v.GetString("budget.timezone"),
			MinRecords: v.GetInt("budget.min_records"),
		},
		Classifier: ClassifierConfig{
			Strategy:    v.GetString("classifier.strategy"),
			CorpusLimit: v.GetInt("classifier.corpus_limit"),
		},
	}
}

// Validate rejects unknown backends and out-of-range values.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case "memory", "firestore":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store.postgres_dsn is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}

	switch c.Cache.Backend {
	case "memory":
	case "file":
		if c.Cache.Dir == "" {
			errs = append(errs, errors.New("cache.dir is required for the file cache"))
		}
	case "gcs":
		if c.Cache.Bucket == "" {
			errs = append(errs, errors.New("cache.bucket is required for the gcs cache"))
		}
	case "redis":
		if c.Cache.RedisURL == "" {
			errs = append(errs, errors.New("cache.redis_url is required for the redis cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}
	if c.Cache.MaxAge < 0 {
		errs = append(errs, errors.New("cache.max_age must not be negative"))
	}

	switch c.Classifier.Strategy {
	case "bayes", "keywords":
	default:
		errs = append(errs, fmt.Errorf("unknown classifier strategy %q", c.Classifier.Strategy))
	}

	if c.Pipeline.MinRecords < 1 {
		errs = append(errs, errors.New("pipeline.min_records must be at least 1"))
	}
	if c.Budget.MinRecords < 1 {
		errs = append(errs, errors.New("budget.min_records must be at least 1"))
	}
	if c.Anomaly.Trees < 1 {
		errs = append(errs, errors.New("anomaly.trees must be at least 1"))
	}
	if c.Anomaly.Contamination <= 0 || c.Anomaly.Contamination > 0.5 {
		errs = append(errs, errors.New("anomaly.contamination must be in (0, 0.5]"))
	}
	if c.Forecast.TrainingTimeout <= 0 {
		errs = append(errs, errors.New("forecast.training_timeout must be positive"))
	}
	if _, err := time.LoadLocation(c.Budget.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid budget.timezone: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// BudgetLocation returns the time zone used to bucket expenses into months.
func (c *Config) BudgetLocation() *time.Location {
	loc, err := time.LoadLocation(c.Budget.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
