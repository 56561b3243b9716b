// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	AdminSecret string `yaml:"admin_secret"` // HMAC secret for staff JWT sessions
	AdminKey    string `yaml:"admin_key"`    // static bearer key for provisioning scripts
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AbuseConfig struct {
	ScanLimitPerIP int           `yaml:"scan_limit_per_ip"` // max scans per IP per window
	ScanWindow     time.Duration `yaml:"scan_window"`
	IPHashKey      string        `yaml:"ip_hash_key"`
	AuditWorkers   int           `yaml:"audit_workers"` // pool size for rejected-scan audit appends
}

type SchedulerConfig struct {
	DisplayExpiryInterval time.Duration `yaml:"display_expiry_interval"`
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Abuse     AbuseConfig     `yaml:"abuse"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Abuse.ScanLimitPerIP <= 0 {
		cfg.Abuse.ScanLimitPerIP = 30
	}
	if cfg.Abuse.ScanWindow <= 0 {
		cfg.Abuse.ScanWindow = time.Minute
	}
	if cfg.Abuse.AuditWorkers <= 0 {
		cfg.Abuse.AuditWorkers = 4
	}
	if cfg.Scheduler.DisplayExpiryInterval <= 0 {
		cfg.Scheduler.DisplayExpiryInterval = time.Minute
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}
