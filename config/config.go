package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	// HTTP trigger server
	HTTP HTTPConfig `mapstructure:"http"`

	// Sources
	Mastodon MastodonConfig `mapstructure:"mastodon"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`

	// Enrichment
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	HackerNews HackerNewsConfig `mapstructure:"hackernews"`

	// Digest delivery
	Digest DigestConfig `mapstructure:"digest"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	Port              int    `mapstructure:"port"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	MonitorPort int    `mapstructure:"monitor_port"`
}

type PrometheusConfig struct {
	Port           int    `mapstructure:"port"`
	Retention      string `mapstructure:"retention"`
	ScrapeInterval string `mapstructure:"scrape_interval"`
	Target         string `mapstructure:"target"`
}

type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

type MastodonConfig struct {
	InstanceURL string `mapstructure:"instance_url"`
	Account     string `mapstructure:"account"`
	PageSize    int    `mapstructure:"page_size"`
	TimeoutSecs int    `mapstructure:"timeout_seconds"`
}

type AlertsConfig struct {
	APIBase        string   `mapstructure:"api_base"`
	Token          string   `mapstructure:"token"`
	Label          string   `mapstructure:"label"`
	ProcessedLabel string   `mapstructure:"processed_label"`
	Blacklist      []string `mapstructure:"blacklist"`
	TimeoutSecs    int      `mapstructure:"timeout_seconds"`
}

type GeminiConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	Model       string `mapstructure:"model"`
	APIKey      string `mapstructure:"api_key"`
	TimeoutSecs int    `mapstructure:"timeout_seconds"`
}

type HackerNewsConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	TimeoutSecs int    `mapstructure:"timeout_seconds"`
	Workers     int    `mapstructure:"workers"`
}

type DigestConfig struct {
	Sender    string `mapstructure:"sender"`
	Recipient string `mapstructure:"recipient"`
	Subject   string `mapstructure:"subject"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8080)

	v.SetDefault("mastodon.instance_url", "https://mstdn.social")
	v.SetDefault("mastodon.page_size", 20)
	v.SetDefault("mastodon.timeout_seconds", 20)

	v.SetDefault("alerts.api_base", "https://gmail.googleapis.com/gmail/v1")
	v.SetDefault("alerts.timeout_seconds", 20)
	v.SetDefault("alerts.blacklist", []string{
		"alerts/feedback",
		"alerts/remove",
		"alerts/edit",
		"alerts/share",
		"alerts",
	})

	v.SetDefault("gemini.endpoint", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.timeout_seconds", 120)

	v.SetDefault("hackernews.endpoint", "https://hn.algolia.com/api/v1")
	v.SetDefault("hackernews.timeout_seconds", 8)
	v.SetDefault("hackernews.workers", 10)

	v.SetDefault("digest.subject", "Today's News")
}

func bindEnvVars(v *viper.Viper) {
	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")
	v.BindEnv("nats.monitor_port", "NATS_MONITOR_PORT")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")
	v.BindEnv("prometheus.retention", "PROM_RETENTION")
	v.BindEnv("prometheus.scrape_interval", "PROM_SCRAPE_INTERVAL")
	v.BindEnv("prometheus.target", "PROM_TARGET")

	// Sources and collaborators
	v.BindEnv("mastodon.instance_url", "MASTODON_INSTANCE_URL")
	v.BindEnv("mastodon.account", "MASTODON_ACCOUNT")
	v.BindEnv("alerts.token", "GMAIL_TOKEN")
	v.BindEnv("alerts.label", "ALERTS_LABEL")
	v.BindEnv("alerts.processed_label", "ALERTS_PROCESSED_LABEL")
	v.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	v.BindEnv("gemini.model", "GEMINI_MODEL")

	// Digest
	v.BindEnv("digest.sender", "SENDER_EMAIL")
	v.BindEnv("digest.recipient", "RECIPIENT_EMAIL")
}
