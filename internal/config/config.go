package config

import (
	"time"

	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/ifuryst/pressline/pkg/logger"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Logger     logger.Config    `yaml:"logger"`
	Redis      RedisConfig      `yaml:"redis"`
	Queue      QueueConfig      `yaml:"queue"`
	Publisher  PublisherConfig  `yaml:"publisher"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Auth       AuthConfig       `yaml:"auth"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	// AllowOrigins lists CORS origins; empty or "*" allows any origin
	AllowOrigins []string `yaml:"allow_origins"`
}

// DatabaseConfig selects postgres or sqlite. For sqlite, Database is the DSN
// (a file path or file::memory: URI).
type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type QueueConfig struct {
	Name        string         `yaml:"name"`
	Concurrency int            `yaml:"concurrency"`
	Queues      map[string]int `yaml:"queues"`
	MaxRetry    int            `yaml:"max_retry"`
	BaseBackoff string         `yaml:"base_backoff"`
	MaxBackoff  string         `yaml:"max_backoff"`
	TaskTimeout string         `yaml:"task_timeout"`
}

type PublisherConfig struct {
	// Timeout bounds a single destination call
	Timeout string            `yaml:"timeout"`
	Social  DestinationConfig `yaml:"social"`
	Website DestinationConfig `yaml:"website"`
	Email   DestinationConfig `yaml:"email"`
}

// DestinationConfig configures one outbound channel. When Simulate is set the
// channel is served by the stand-in publisher instead of the remote API.
type DestinationConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Simulate      bool   `yaml:"simulate"`
	SimulateDelay string `yaml:"simulate_delay"`
	Endpoint      string `yaml:"endpoint"`
	Token         string `yaml:"token"`
	// Channel specific settings
	Accounts  []string  `yaml:"accounts"`   // social
	BaseURL   string    `yaml:"base_url"`   // website
	Git       GitConfig `yaml:"git"`        // website, used instead of Endpoint when RepoURL is set
	FromEmail string    `yaml:"from_email"` // email
	ListID    string    `yaml:"list_id"`    // email
}

// GitConfig points the website destination at a static site repository
type GitConfig struct {
	RepoURL      string `yaml:"repo_url"`
	Branch       string `yaml:"branch"`
	WorkspaceDir string `yaml:"workspace_dir"`
	ContentDir   string `yaml:"content_dir"`
	Username     string `yaml:"username"`
	Email        string `yaml:"email"`
}

type SchedulerConfig struct {
	SweepInterval string `yaml:"sweep_interval"`
	GracePeriod   string `yaml:"grace_period"`
	BatchSize     int    `yaml:"batch_size"`
	Enabled       *bool  `yaml:"enabled"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type AuthConfig struct {
	TOTPSecret string `yaml:"totp_secret"`
}

type MonitoringConfig struct {
	StatsInterval string `yaml:"stats_interval"`
	RetentionDays int    `yaml:"retention_days"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills every unset field with its default value.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5334
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Queue.Name == "" {
		cfg.Queue.Name = "default"
	}
	if cfg.Queue.Concurrency <= 0 {
		cfg.Queue.Concurrency = 10
	}
	if len(cfg.Queue.Queues) == 0 {
		cfg.Queue.Queues = map[string]int{cfg.Queue.Name: 1}
	}
	if cfg.Queue.MaxRetry == 0 {
		cfg.Queue.MaxRetry = 3
	}
	if cfg.Queue.BaseBackoff == "" {
		cfg.Queue.BaseBackoff = "10s"
	}
	if cfg.Queue.MaxBackoff == "" {
		cfg.Queue.MaxBackoff = "10m"
	}
	if cfg.Queue.TaskTimeout == "" {
		cfg.Queue.TaskTimeout = "10m"
	}
	if cfg.Publisher.Timeout == "" {
		cfg.Publisher.Timeout = "30s"
	}
	if cfg.Publisher.Website.Git.WorkspaceDir == "" {
		cfg.Publisher.Website.Git.WorkspaceDir = "./data/workspace"
	}
	if cfg.Scheduler.SweepInterval == "" {
		cfg.Scheduler.SweepInterval = "5m"
	}
	if cfg.Scheduler.GracePeriod == "" {
		cfg.Scheduler.GracePeriod = "2m"
	}
	if cfg.Scheduler.BatchSize <= 0 {
		cfg.Scheduler.BatchSize = 100
	}
	if cfg.Scheduler.Enabled == nil {
		enabled := true
		cfg.Scheduler.Enabled = &enabled
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "pressline.jobs"
	}
	if cfg.Monitoring.StatsInterval == "" {
		cfg.Monitoring.StatsInterval = "5m"
	}
	if cfg.Monitoring.RetentionDays <= 0 {
		cfg.Monitoring.RetentionDays = 90
	}
}

// Duration parses a config duration, falling back to def when empty or invalid.
func Duration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
