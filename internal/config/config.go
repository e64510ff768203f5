package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MaxPageSize is the search endpoint's upper bound for max_results.
const MaxPageSize = 100

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	API       APIConfig       `yaml:"api"`
	Collect   CollectConfig   `yaml:"collect"`
	Gazetteer GazetteerConfig `yaml:"gazetteer"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	LogLevel  string          `yaml:"log_level"`
}

type RabbitMQConfig struct {
	// Empty URL disables publishing.
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type APIConfig struct {
	BearerToken string         `yaml:"bearer_token"`
	Search      EndpointConfig `yaml:"search"`
	Users       EndpointConfig `yaml:"users"`
	PageSize    int            `yaml:"page_size"`
	Timeout     time.Duration  `yaml:"timeout"`
	Retry       RetryConfig    `yaml:"retry"`
}

// EndpointConfig is an endpoint URL plus query parameters sent with every request.
type EndpointConfig struct {
	URL    string            `yaml:"url"`
	Params map[string]string `yaml:"params"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type CollectConfig struct {
	Keyword string `yaml:"keyword"`
	Days    int    `yaml:"days"`
	// DayCap bounds the records accepted per window; zero or less means no cap.
	DayCap     int           `yaml:"day_cap"`
	Pacing     time.Duration `yaml:"pacing"`
	RequireGeo *bool         `yaml:"require_geo"`
	Interval   time.Duration `yaml:"interval"`
	RunTimeout time.Duration `yaml:"run_timeout"`
}

// GeoRequired reports whether posts without a geotag are dropped.
func (c CollectConfig) GeoRequired() bool {
	return c.RequireGeo == nil || *c.RequireGeo
}

type GazetteerConfig struct {
	Path string `yaml:"path"`
}

type MetricsConfig struct {
	// Empty Addr disables the metrics server.
	Addr string `yaml:"addr"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return Parse(data)
}

// Parse expands environment variables in data, decodes it and applies defaults.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "tweet_fetcher"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "tweets"
	}
	if c.RabbitMQ.QueueName == "" {
		c.RabbitMQ.QueueName = "geo_tweets"
	}
	if c.API.Search.URL == "" {
		c.API.Search.URL = "https://api.twitter.com/2/tweets/search/recent"
	}
	if c.API.Users.URL == "" {
		c.API.Users.URL = "https://api.twitter.com/2/users"
	}
	if c.API.PageSize == 0 {
		c.API.PageSize = MaxPageSize
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = 30 * time.Second
	}
	if c.API.Retry.MaxAttempts == 0 {
		c.API.Retry.MaxAttempts = 3
	}
	if c.API.Retry.InitialBackoff == 0 {
		c.API.Retry.InitialBackoff = 1 * time.Second
	}
	if c.API.Retry.MaxBackoff == 0 {
		c.API.Retry.MaxBackoff = 30 * time.Second
	}
	if c.Collect.Days == 0 {
		c.Collect.Days = 7
	}
	if c.Collect.DayCap == 0 {
		c.Collect.DayCap = 1000
	}
	if c.Collect.Pacing == 0 {
		c.Collect.Pacing = 2 * time.Second
	}
	if c.Collect.Interval == 0 {
		c.Collect.Interval = 24 * time.Hour
	}
	if c.Collect.RunTimeout == 0 {
		c.Collect.RunTimeout = 2 * time.Hour
	}
	if c.Gazetteer.Path == "" {
		c.Gazetteer.Path = "data/world_cities.csv"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if c.Collect.Keyword == "" {
		errs = append(errs, errors.New("collect.keyword is required"))
	}
	if c.Collect.Days < 1 {
		errs = append(errs, errors.New("collect.days must be >= 1"))
	}
	if c.Collect.Pacing < 0 {
		errs = append(errs, errors.New("collect.pacing must not be negative"))
	}
	if c.API.PageSize < 10 || c.API.PageSize > MaxPageSize {
		errs = append(errs, fmt.Errorf("api.page_size must be between 10 and %d", MaxPageSize))
	}
	if c.API.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("api.retry.max_attempts must be >= 1"))
	}
	return errors.Join(errs...)
}
