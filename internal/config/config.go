package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Database    DatabaseConfig   `json:"database"`
	Port        int              `json:"port"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Storage     StorageConfig    `json:"storage"`
	Embedding   EmbeddingConfig  `json:"embedding"`
	Chunking    ChunkingConfig   `json:"chunking"`
	Ingest      IngestConfig     `json:"ingest"`
	Render      RenderConfig     `json:"render"`
	CORSOrigins []string         `json:"cors_origins"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
	// PoolSize connections are kept idle; MaxOverflow more may be opened
	// under load.
	PoolSize        int `json:"pool_size"`
	MaxOverflow     int `json:"max_overflow"`
	ConnMaxLifetime int `json:"conn_max_lifetime"`
}

type StorageConfig struct {
	LocalDir string    `json:"local_dir"`
	Remote   *S3Config `json:"remote"`
}

type S3Config struct {
	Endpoint     string `json:"endpoint"`
	SecretID     string `json:"secret_id"`
	SecretKey    string `json:"secret_key"`
	Region       string `json:"region"`
	PublicURL    string `json:"public_url"`
	UsePathStyle bool   `json:"use_path_style"`
	UseSSL       bool   `json:"use_ssl"`
	PresignTTL   int    `json:"presign_ttl"`
}

type EmbeddingConfig struct {
	Provider   string      `json:"provider"`
	Model      string      `json:"model"`
	Dimension  int         `json:"dimension"`
	BatchSize  int         `json:"batch_size"`
	Concurrent bool        `json:"concurrent"`
	Timeout    int         `json:"timeout"`
	CacheSize  int         `json:"cache_size"`
	CacheTTL   int         `json:"cache_ttl"`
	// RetryInterval is the number of seconds between readiness probes
	// after a failed one.
	RetryInterval int         `json:"retry_interval"`
	Data          interface{} `json:"data"`
}

type ChunkingConfig struct {
	Size    int `json:"size"`
	Overlap int `json:"overlap"`
	MinLen  int `json:"min_len"`
}

type IngestConfig struct {
	FlushSize  int    `json:"flush_size"`
	Cron       string `json:"cron"`
	RunOnStart bool   `json:"run_on_start"`
}

type RenderConfig struct {
	DPI         int    `json:"dpi"`
	Workers     int    `json:"workers"`
	RateLimitMs int    `json:"rate_limit_ms"`
	WorkDir     string `json:"work_dir"`
}

// RemoteEnabled reports whether remote object storage can be used. Missing
// credentials disable it instead of failing startup.
func (c *Config) RemoteEnabled() bool {
	r := c.Storage.Remote
	return r != nil && strings.TrimSpace(r.SecretID) != "" && strings.TrimSpace(r.SecretKey) != ""
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	cfg := presetConfig()
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// presetConfig holds defaults for fields where an explicit zero is valid.
// They are set before decoding so only absent fields take them.
func presetConfig() Config {
	return Config{
		Database: DatabaseConfig{MaxOverflow: 20},
		Chunking: ChunkingConfig{Overlap: 50, MinLen: 50},
	}
}

func (c *Config) applyDefaults() error {
	if c.Database.DSN == "" && c.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.PoolSize <= 0 {
		c.Database.PoolSize = 10
	}
	if c.Database.MaxOverflow < 0 {
		return fmt.Errorf("database.max_overflow must not be negative")
	}
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.Storage.LocalDir == "" {
		c.Storage.LocalDir = "./pdfs"
	}
	if r := c.Storage.Remote; r != nil && r.Region == "" {
		r.Region = "us-east-1"
	}
	if c.Embedding.Provider == "" {
		return fmt.Errorf("embedding.provider is required")
	}
	if c.Embedding.Dimension <= 0 {
		c.Embedding.Dimension = 384
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 32
	}
	if c.Embedding.Timeout <= 0 {
		c.Embedding.Timeout = 60
	}
	if c.Embedding.RetryInterval <= 0 {
		c.Embedding.RetryInterval = 30
	}
	if c.Chunking.Size <= 0 {
		c.Chunking.Size = 500
	}
	if c.Chunking.Overlap < 0 {
		return fmt.Errorf("chunking.overlap must not be negative")
	}
	if c.Chunking.MinLen < 0 {
		return fmt.Errorf("chunking.min_len must not be negative")
	}
	if c.Chunking.Overlap*2 >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be less than half of chunking.size")
	}
	if c.Ingest.FlushSize <= 0 {
		c.Ingest.FlushSize = 100
	}
	if c.Render.DPI <= 0 {
		c.Render.DPI = 150
	}
	if c.Render.Workers <= 0 {
		c.Render.Workers = 4
	}
	if c.Render.WorkDir == "" {
		c.Render.WorkDir = os.TempDir()
	}
	return nil
}
