package config

import (
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Backends           []string `yaml:"backends"` // empty = all registered
	Output             string   `yaml:"-"`
	Token              string   `yaml:"-"`
	OSVScannerPath     string   `yaml:"osv_scanner_path"`
	ScanTimeoutSeconds int      `yaml:"scan_timeout_seconds"`
	Cache              Cache    `yaml:"cache"`
	DBPath             string   `yaml:"db_path"`
	MetricsAddr        string   `yaml:"metrics_addr"`
	Debug              bool     `yaml:"-"`
}

type Cache struct {
	TTLHours   int `yaml:"ttl_hours"`
	MaxEntries int `yaml:"max_entries"`
}

func Default() *Config {
	return &Config{
		Output:             "table",
		OSVScannerPath:     "osv-scanner",
		ScanTimeoutSeconds: 60,
		Cache: Cache{
			TTLHours:   12,
			MaxEntries: 1000,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func MergeFlags(cfg *Config, flags *pflag.FlagSet) *Config {
	if v, err := flags.GetStringSlice("backend"); err == nil && len(v) > 0 {
		cfg.Backends = v
	}
	if v, err := flags.GetString("output"); err == nil && v != "" {
		cfg.Output = v
	}
	if v, err := flags.GetString("github-token"); err == nil && v != "" {
		cfg.Token = v
	}
	if v, err := flags.GetString("osv-scanner-path"); err == nil && v != "" {
		cfg.OSVScannerPath = v
	}
	if v, err := flags.GetInt("timeout"); err == nil && v > 0 {
		cfg.ScanTimeoutSeconds = v
	}
	if v, err := flags.GetString("db"); err == nil && v != "" {
		cfg.DBPath = v
	}
	if v, err := flags.GetString("metrics-addr"); err == nil && v != "" {
		cfg.MetricsAddr = v
	}
	if v, err := flags.GetBool("debug"); err == nil {
		cfg.Debug = v
	}
	return cfg
}

func (c *Config) ScanTimeout() time.Duration {
	return time.Duration(c.ScanTimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}
