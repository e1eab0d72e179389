package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type HTTPConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// NATSConfig points at the JetStream server carrying engagement events.
// An empty URL runs the service without events.
type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type FeedConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
}

type RescoreConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

// ViewsConfig bounds how often one visitor can add to a post's views.
type ViewsConfig struct {
	Relaxation    time.Duration `mapstructure:"relaxation"`
	MaxPerVisitor int           `mapstructure:"max_per_visitor"`
}

// Config is the top-level configuration structure.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Rescore RescoreConfig `mapstructure:"rescore"`
	Views   ViewsConfig   `mapstructure:"views"`
}

// envBindings maps config keys to the environment variables used in
// deployment manifests.
var envBindings = map[string]string{
	"app.env":               "APP_ENV",
	"http.addr":             "HTTP_ADDR",
	"http.cors_origins":     "CORS_ORIGINS",
	"mongo.uri":             "MONGO_URI",
	"mongo.database":        "MONGO_DATABASE",
	"nats.url":              "NATS_URL",
	"redis.addr":            "REDIS_ADDR",
	"redis.password":        "REDIS_PASSWORD",
	"redis.db":              "REDIS_DB",
	"auth.jwt_secret":       "JWT_SECRET",
	"feed.default_limit":    "FEED_DEFAULT_LIMIT",
	"rescore.interval":      "RESCORE_INTERVAL",
	"rescore.batch_size":    "RESCORE_BATCH_SIZE",
	"views.relaxation":      "VIEW_RELAXATION",
	"views.max_per_visitor": "VIEW_MAX_PER_VISITOR",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "opencanvas-service")
	v.SetDefault("app.env", "production")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "opencanvas")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("feed.default_limit", 16)
	v.SetDefault("rescore.interval", "10m")
	v.SetDefault("rescore.batch_size", 500)
	v.SetDefault("views.relaxation", "35m")
	v.SetDefault("views.max_per_visitor", 16)
}

// Load reads defaults, then the config file if one exists, then the
// environment. file may be empty to search ./config.yaml.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &nf) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.HTTP.CORSOrigins = splitList(cfg.HTTP.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first setting the service cannot start with.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Mongo.URI) == "":
		return errors.New("MONGO_URI is not set")
	case strings.TrimSpace(c.Mongo.Database) == "":
		return errors.New("MONGO_DATABASE is not set")
	case strings.TrimSpace(c.Auth.JWTSecret) == "":
		return errors.New("JWT_SECRET is not set")
	case c.Rescore.Interval <= 0:
		return fmt.Errorf("rescore interval must be positive, got %v", c.Rescore.Interval)
	case c.Rescore.BatchSize <= 0:
		return fmt.Errorf("rescore batch size must be positive, got %d", c.Rescore.BatchSize)
	case c.Views.Relaxation <= 0:
		return fmt.Errorf("view relaxation must be positive, got %v", c.Views.Relaxation)
	case c.Views.MaxPerVisitor <= 0:
		return fmt.Errorf("max views per visitor must be positive, got %d", c.Views.MaxPerVisitor)
	case c.Feed.DefaultLimit < 1 || c.Feed.DefaultLimit > 50:
		return fmt.Errorf("feed default limit must be within 1-50, got %d", c.Feed.DefaultLimit)
	}
	return nil
}

// IsDevelopment reports whether error details may be sent to clients.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.App.Env, "development")
}

// splitList accepts both YAML lists and a comma separated env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
