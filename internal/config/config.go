package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the configuration for the outreach engine.
type Config struct {
	HTTPAddr string `mapstructure:"http_addr"`
	LogLevel string `mapstructure:"log_level"`

	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`

	AMQPURL string `mapstructure:"amqp_url"`

	Redis struct {
		Addr     string        `mapstructure:"addr"`
		ClaimTTL time.Duration `mapstructure:"claim_ttl"`
	} `mapstructure:"redis"`

	SMTP struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
		User string `mapstructure:"user"`
		Pass string `mapstructure:"pass"`
		From string `mapstructure:"from"`
	} `mapstructure:"smtp"`
	AppDomain   string `mapstructure:"app_domain"`
	TrackingURL string `mapstructure:"tracking_url"`

	Rewrite struct {
		Provider    string `mapstructure:"provider"`
		GenAIAPIKey string `mapstructure:"genai_api_key"`
		GenAIModel  string `mapstructure:"genai_model"`
		ProxyURL    string `mapstructure:"proxy_url"`
	} `mapstructure:"rewrite"`

	Outreach struct {
		ProgramName       string `mapstructure:"program_name"`
		DefaultCampaignID string `mapstructure:"default_campaign_id"`
		HistoryRetention  int    `mapstructure:"history_retention"`

		FallbackEventWindow time.Duration `mapstructure:"fallback_event_window"`
		OpenDedupWindow     time.Duration `mapstructure:"open_dedup_window"`
	} `mapstructure:"outreach"`
}

// DSN builds the lib/pq connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode,
	)
}

// envBindings maps flat env variable names onto nested config keys.
var envBindings = map[string]string{
	"http_addr":                      "HTTP_ADDR",
	"log_level":                      "LOG_LEVEL",
	"db.host":                        "DB_HOST",
	"db.port":                        "DB_PORT",
	"db.user":                        "DB_USER",
	"db.password":                    "DB_PASSWORD",
	"db.name":                        "DB_NAME",
	"db.sslmode":                     "DB_SSLMODE",
	"amqp_url":                       "AMQP_URL",
	"redis.addr":                     "REDIS_ADDR",
	"redis.claim_ttl":                "SEND_CLAIM_TTL",
	"smtp.host":                      "SMTP_HOST",
	"smtp.port":                      "SMTP_PORT",
	"smtp.user":                      "SMTP_USER",
	"smtp.pass":                      "SMTP_PASS",
	"smtp.from":                      "SMTP_FROM",
	"app_domain":                     "APP_DOMAIN",
	"tracking_url":                   "TRACKING_URL",
	"rewrite.provider":               "REWRITE_PROVIDER",
	"rewrite.genai_api_key":          "GENAI_API_KEY",
	"rewrite.genai_model":            "GENAI_MODEL",
	"rewrite.proxy_url":              "REWRITE_PROXY_URL",
	"outreach.program_name":          "PROGRAM_NAME",
	"outreach.default_campaign_id":   "DEFAULT_CAMPAIGN_ID",
	"outreach.history_retention":     "HISTORY_RETENTION",
	"outreach.fallback_event_window": "FALLBACK_EVENT_WINDOW",
	"outreach.open_dedup_window":     "OPEN_DEDUP_WINDOW",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("redis.claim_ttl", 2*time.Minute)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("app_domain", "localhost:8080")
	v.SetDefault("rewrite.provider", "none")
	v.SetDefault("rewrite.genai_model", "gemini-2.0-flash")
	v.SetDefault("outreach.program_name", "LeaderReps")
	v.SetDefault("outreach.default_campaign_id", "c1")
	v.SetDefault("outreach.history_retention", 100)
	v.SetDefault("outreach.fallback_event_window", time.Hour)
	v.SetDefault("outreach.open_dedup_window", time.Minute)
}

// LoadConfig loads .env (if present), an optional config.yaml and the
// environment, in increasing order of precedence.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Rewrite.Provider = strings.ToLower(strings.TrimSpace(cfg.Rewrite.Provider))
	if cfg.Outreach.HistoryRetention < 0 {
		cfg.Outreach.HistoryRetention = 0
	}
	return &cfg, nil
}
