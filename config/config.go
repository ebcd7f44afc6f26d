package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Scanner    ScannerConfig    `yaml:"scanner"`
	Storage    StorageConfig    `yaml:"storage"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	Enabled    bool   `yaml:"enabled"`
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	RequestIPHeader string        `yaml:"request_ip_header"`
	RateLimitPerSec float64       `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	CacheTTLSeconds int           `yaml:"cache_ttl_seconds"`
	CacheTTL        time.Duration `yaml:"-"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// CatalogConfig describes where the equipment table comes from and how it is read.
type CatalogConfig struct {
	SourceURL             string            `yaml:"source_url"`
	SourcePath            string            `yaml:"source_path"`
	Headers               map[string]string `yaml:"headers"`
	HTTPProxy             string            `yaml:"http_proxy"`
	Delimiter             string            `yaml:"delimiter"`
	Timezone              string            `yaml:"timezone"`
	ReloadIntervalSeconds int               `yaml:"reload_interval_seconds"`
	ReloadInterval        time.Duration     `yaml:"-"`
}

// ScannerConfig tunes the scan-to-catalog delivery flow.
type ScannerConfig struct {
	CooldownMs              int           `yaml:"cooldown_ms"`
	Cooldown                time.Duration `yaml:"-"`
	ReadinessTimeoutSeconds int           `yaml:"readiness_timeout_seconds"`
	ReadinessTimeout        time.Duration `yaml:"-"`
	AutoCloseMs             int           `yaml:"auto_close_ms"`
	AutoClose               time.Duration `yaml:"-"`
	DecodesPerSecond        float64       `yaml:"decodes_per_second"`
	Strictness              string        `yaml:"strictness"`    // exact | suggest
	RescanPolicy            string        `yaml:"rescan_policy"` // notify | uncheck
	QueryParams             []string      `yaml:"query_params"`
}

// StorageConfig selects the key-value backend used for status snapshots and pending scans.
type StorageConfig struct {
	Backend string `yaml:"backend"` // gorm | redis | memory
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres | sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogSQL                 bool   `yaml:"log_sql"`
}

// RedisConfig holds the redis connection used by the redis storage backend.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// LoadEnv reads a .env file into the process environment if one exists.
func LoadEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("godotenv.Load() error: %v", err)
	}
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a configuration with every default applied, used when no file is present.
func Default() *Config {
	var cfg Config
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("VAPID_PUBLIC_KEY"); v != "" {
		cfg.Push.PublicKey = v
	}
	if v := os.Getenv("VAPID_PRIVATE_KEY"); v != "" {
		cfg.Push.PrivateKey = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 20
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}
	cfg.Server.CacheTTL = time.Duration(cfg.Server.CacheTTLSeconds) * time.Second

	if cfg.Catalog.Timezone == "" {
		cfg.Catalog.Timezone = "Local"
	}
	if cfg.Catalog.ReloadIntervalSeconds > 0 {
		cfg.Catalog.ReloadInterval = time.Duration(cfg.Catalog.ReloadIntervalSeconds) * time.Second
	}

	if cfg.Scanner.CooldownMs <= 0 {
		cfg.Scanner.CooldownMs = 2000
	}
	cfg.Scanner.Cooldown = time.Duration(cfg.Scanner.CooldownMs) * time.Millisecond
	if cfg.Scanner.ReadinessTimeoutSeconds <= 0 {
		cfg.Scanner.ReadinessTimeoutSeconds = 10
	}
	cfg.Scanner.ReadinessTimeout = time.Duration(cfg.Scanner.ReadinessTimeoutSeconds) * time.Second
	if cfg.Scanner.AutoCloseMs <= 0 {
		cfg.Scanner.AutoCloseMs = 2000
	}
	cfg.Scanner.AutoClose = time.Duration(cfg.Scanner.AutoCloseMs) * time.Millisecond
	if cfg.Scanner.DecodesPerSecond <= 0 {
		cfg.Scanner.DecodesPerSecond = 1
	}
	cfg.Scanner.Strictness = strings.ToLower(strings.TrimSpace(cfg.Scanner.Strictness))
	if cfg.Scanner.Strictness != "suggest" {
		cfg.Scanner.Strictness = "exact"
	}
	cfg.Scanner.RescanPolicy = strings.ToLower(strings.TrimSpace(cfg.Scanner.RescanPolicy))
	if cfg.Scanner.RescanPolicy != "uncheck" {
		cfg.Scanner.RescanPolicy = "notify"
	}
	if len(cfg.Scanner.QueryParams) == 0 {
		cfg.Scanner.QueryParams = []string{"id", "code", "equipment"}
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "gorm"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "inventory.sqlite3"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "inventory:"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}
