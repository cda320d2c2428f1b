package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full analyzer configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	UGG      UGGConfig      `yaml:"ugg"`
	Riot     RiotConfig     `yaml:"riot"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Discord  DiscordConfig  `yaml:"discord"`
}

type DatabaseConfig struct {
	Driver    string `yaml:"driver"` // postgres, sqlite or libsql
	DSN       string `yaml:"dsn"`
	AuthToken string `yaml:"auth_token"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"` // empty disables the shared cache
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type UGGConfig struct {
	BaseURL     string        `yaml:"base_url"`
	UserAgent   string        `yaml:"user_agent"`
	Timeout     time.Duration `yaml:"timeout"`
	MinInterval time.Duration `yaml:"min_interval"`
	MaxRetries  int           `yaml:"max_retries"`
	BaseBackoff time.Duration `yaml:"base_backoff"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

type RiotConfig struct {
	APIKey      string `yaml:"api_key"`
	RegionURL   string `yaml:"region_url"`
	PlatformURL string `yaml:"platform_url"`
}

type IngestConfig struct {
	Workers            int           `yaml:"workers"`
	MatchesPerPlayer   int           `yaml:"matches_per_player"`
	BloomCapacity      uint          `yaml:"bloom_capacity"`
	BloomFalsePositive float64       `yaml:"bloom_false_positive"`
	StoragePath        string        `yaml:"storage_path"` // JSONL archive root, empty disables
	StalePlayerAge     time.Duration `yaml:"stale_player_age"`
	RecommendLimit     int           `yaml:"recommend_limit"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"` // empty disables notifications
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "analyzer.db",
		},
		UGG: UGGConfig{
			BaseURL:     "https://u.gg",
			UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Timeout:     10 * time.Second,
			MinInterval: time.Second,
			MaxRetries:  3,
			BaseBackoff: time.Second,
			CacheTTL:    60 * time.Minute,
		},
		Riot: RiotConfig{
			RegionURL:   "https://americas.api.riotgames.com",
			PlatformURL: "https://na1.api.riotgames.com",
		},
		Ingest: IngestConfig{
			Workers:            4,
			MatchesPerPlayer:   20,
			BloomCapacity:      500000,
			BloomFalsePositive: 0.001,
			StalePlayerAge:     7 * 24 * time.Hour,
			RecommendLimit:     10,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads .env files, the optional YAML file at path, then applies
// environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFiles tries the usual locations relative to the working directory.
func loadEnvFiles() {
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			return
		}
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setString(&cfg.Database.DSN, "DATABASE_URL")
	setString(&cfg.Database.AuthToken, "TURSO_AUTH_TOKEN")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.UGG.BaseURL, "UGG_BASE_URL")
	setString(&cfg.Riot.APIKey, "RIOT-DEV-KEY")
	setString(&cfg.Riot.APIKey, "RIOT_API_KEY")
	setString(&cfg.Ingest.StoragePath, "BLOB_STORAGE_PATH")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Discord.WebhookURL, "DISCORD_WEBHOOK")

	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	if v := os.Getenv("INGEST_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingest.Workers = n
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate rejects settings the components cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "postgres", "sqlite", "libsql":
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}
	if c.UGG.MinInterval <= 0 {
		errs = append(errs, errors.New("ugg.min_interval must be positive"))
	}
	if c.UGG.MaxRetries < 1 {
		errs = append(errs, errors.New("ugg.max_retries must be at least 1"))
	}
	if c.UGG.BaseBackoff <= 0 {
		errs = append(errs, errors.New("ugg.base_backoff must be positive"))
	}
	if c.UGG.CacheTTL <= 0 {
		errs = append(errs, errors.New("ugg.cache_ttl must be positive"))
	}
	if c.Ingest.Workers < 1 {
		errs = append(errs, errors.New("ingest.workers must be at least 1"))
	}

	return errors.Join(errs...)
}
