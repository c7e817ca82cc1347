package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Logging  LoggingConfig  `yaml:"logging"`
	Reader   ReaderConfig   `yaml:"reader"`
	Source   SourceConfig   `yaml:"source"`
	Alert    AlertConfig    `yaml:"alert"`
	Dedup    DedupConfig    `yaml:"dedup"`
	Redis    RedisConfig    `yaml:"redis"`
	Notifier NotifierConfig `yaml:"notifier"`
	Server   ServerConfig   `yaml:"server"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level          string        `yaml:"level"`
	Format         string        `yaml:"format"`
	Output         string        `yaml:"output"`
	MaxAge         int           `yaml:"max_age"`
	ReportInterval time.Duration `yaml:"report_interval"`
}

type ReaderConfig struct {
	Timeout   time.Duration   `yaml:"timeout"`
	UserAgent string          `yaml:"user_agent"`
	LocalIP   string          `yaml:"local_ip"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type SourceConfig struct {
	Binance BinanceSourceConfig `yaml:"binance"`
	Okx     OkxSourceConfig     `yaml:"okx"`
	Bybit   BybitSourceConfig   `yaml:"bybit"`
	Mexc    MexcSourceConfig    `yaml:"mexc"`
}

type BinanceSourceConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Limit   int    `yaml:"limit"`
}

type OkxSourceConfig struct {
	Enabled     bool     `yaml:"enabled"`
	URL         string   `yaml:"url"`
	Instruments []string `yaml:"instruments"`
}

type BybitSourceConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
	Quote    string `yaml:"quote"`
}

type MexcSourceConfig struct {
	Enabled     bool   `yaml:"enabled"`
	URL         string `yaml:"url"`
	MaxSymbols  int    `yaml:"max_symbols"`
	Concurrency int    `yaml:"concurrency"`
}

type AlertConfig struct {
	WindowMinutes int           `yaml:"window_minutes"`
	TopN          int           `yaml:"top_n"`
	Interval      time.Duration `yaml:"interval"`
	Watchlist     []string      `yaml:"watchlist"`
}

// Window returns the lookahead window as a duration.
func (a AlertConfig) Window() time.Duration {
	return time.Duration(a.WindowMinutes) * time.Minute
}

type DedupConfig struct {
	Enabled bool          `yaml:"enabled"`
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
	Prefix  string        `yaml:"prefix"`
}

type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

type NotifierConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Wechat   WechatConfig   `yaml:"wechat"`
}

type TelegramConfig struct {
	Enabled   bool          `yaml:"enabled"`
	URL       string        `yaml:"url"`
	Token     string        `yaml:"token"`
	ChatID    string        `yaml:"chat_id"`
	ParseMode string        `yaml:"parse_mode"`
	Timeout   time.Duration `yaml:"timeout"`
}

type WechatConfig struct {
	Enabled    bool          `yaml:"enabled"`
	WebhookURL string        `yaml:"webhook_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

type ServerConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Address       string `yaml:"address"`
	MetricHistory int    `yaml:"metric_history"`
}

type MetricsConfig struct {
	Prometheus bool             `yaml:"prometheus"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	return Config{
		App: AppConfig{Name: "fundingwatch", Version: "dev"},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "json",
			Output:         "stdout",
			ReportInterval: 30 * time.Second,
		},
		Reader: ReaderConfig{
			Timeout:   10 * time.Second,
			UserAgent: "fundingwatch/1.0",
			RateLimit: RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5},
		},
		Source: SourceConfig{
			Binance: BinanceSourceConfig{Enabled: true, URL: "https://fapi.binance.com", Limit: 100},
			Okx:     OkxSourceConfig{Enabled: true, URL: "https://www.okx.com", Instruments: []string{"BTC-USD-SWAP"}},
			Bybit:   BybitSourceConfig{Enabled: true, URL: "https://api.bybit.com", Category: "linear", Quote: "USDT"},
			Mexc:    MexcSourceConfig{Enabled: true, URL: "https://contract.mexc.com", MaxSymbols: 200, Concurrency: 4},
		},
		Alert: AlertConfig{
			WindowMinutes: 45,
			TopN:          3,
			Interval:      60 * time.Second,
		},
		Dedup: DedupConfig{
			Backend: "memory",
			TTL:     time.Hour,
			Prefix:  "fundingwatch:alerted:",
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			DialTimeout: 5 * time.Second,
		},
		Notifier: NotifierConfig{
			Telegram: TelegramConfig{
				URL:       "https://api.telegram.org",
				ParseMode: "HTML",
				Timeout:   10 * time.Second,
			},
			Wechat: WechatConfig{Timeout: 10 * time.Second},
		},
		Server: ServerConfig{
			Enabled:       true,
			Address:       "0.0.0.0:8000",
			MetricHistory: 200,
		},
		Metrics: MetricsConfig{
			Prometheus: true,
			CloudWatch: CloudWatchConfig{Namespace: "FundingWatch"},
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults, applies environment overrides
// and validates the result.
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnv(config *Config) {
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")); v != "" {
		config.Notifier.Telegram.Token = v
		config.Notifier.Telegram.Enabled = true
	}
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); v != "" {
		config.Notifier.Telegram.ChatID = v
	}
	if v := strings.TrimSpace(os.Getenv("WECHAT_WEBHOOK")); v != "" {
		config.Notifier.Wechat.WebhookURL = v
		config.Notifier.Wechat.Enabled = true
	}
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if _, err := strconv.Atoi(v); err == nil {
			host := "0.0.0.0"
			if h, _, err := net.SplitHostPort(config.Server.Address); err == nil && h != "" {
				host = h
			}
			config.Server.Address = net.JoinHostPort(host, v)
		}
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_ADDR")); v != "" {
		config.Redis.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("AWS_REGION")); v != "" && config.Metrics.CloudWatch.Region == "" {
		config.Metrics.CloudWatch.Region = v
	}
}

func validateConfig(cfg *Config) error {
	if cfg.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}

	if cfg.Reader.Timeout <= 0 {
		return fmt.Errorf("reader.timeout must be greater than 0")
	}
	if cfg.Reader.LocalIP != "" && net.ParseIP(cfg.Reader.LocalIP) == nil {
		return fmt.Errorf("reader.local_ip '%s' is not an IP address", cfg.Reader.LocalIP)
	}

	if cfg.Alert.WindowMinutes <= 0 {
		return fmt.Errorf("alert.window_minutes must be greater than 0")
	}
	if cfg.Alert.TopN <= 0 {
		return fmt.Errorf("alert.top_n must be greater than 0")
	}
	if cfg.Alert.Interval <= 0 {
		return fmt.Errorf("alert.interval must be greater than 0")
	}

	if !cfg.Source.Binance.Enabled && !cfg.Source.Okx.Enabled && !cfg.Source.Bybit.Enabled && !cfg.Source.Mexc.Enabled {
		return fmt.Errorf("at least one source must be enabled")
	}
	if cfg.Source.Okx.Enabled && len(cfg.Source.Okx.Instruments) == 0 {
		return fmt.Errorf("source.okx.instruments is required when okx is enabled")
	}
	if cfg.Source.Mexc.Concurrency < 0 {
		return fmt.Errorf("source.mexc.concurrency must not be negative")
	}

	if cfg.Dedup.Enabled {
		switch cfg.Dedup.Backend {
		case "memory":
		case "redis":
			if cfg.Redis.Addr == "" {
				return fmt.Errorf("redis.addr is required when dedup.backend is redis")
			}
		default:
			return fmt.Errorf("dedup.backend '%s' is invalid", cfg.Dedup.Backend)
		}
		if cfg.Dedup.TTL <= 0 {
			return fmt.Errorf("dedup.ttl must be greater than 0")
		}
	}

	if cfg.Notifier.Telegram.Enabled {
		if cfg.Notifier.Telegram.Token == "" || cfg.Notifier.Telegram.ChatID == "" {
			return fmt.Errorf("notifier.telegram.token and notifier.telegram.chat_id are required when telegram is enabled")
		}
	}
	if cfg.Notifier.Wechat.Enabled && cfg.Notifier.Wechat.WebhookURL == "" {
		return fmt.Errorf("notifier.wechat.webhook_url is required when wechat is enabled")
	}

	return nil
}
