package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML
// friendly. Pointer fields distinguish "absent" from an explicit zero.
type FileConfig struct {
	Token              string   `toml:"token"`
	Server             string   `toml:"server"`
	Port               int      `toml:"port"`
	UseTLS             *bool    `toml:"use_tls"`
	InsecureSkipVerify *bool    `toml:"insecure_skip_verify"`
	Index              string   `toml:"index"`
	Host               string   `toml:"host"`
	MaxBatchBytes      int      `toml:"max_batch_bytes"`
	MaxRetries         *int     `toml:"max_retries"`
	BackoffFactor      *float64 `toml:"backoff_factor"`
	PoolConnections    int      `toml:"pool_connections"`
	PoolMaxSize        int      `toml:"pool_max_size"`
	Timeout            string   `toml:"timeout"`
	Gzip               *bool    `toml:"gzip"`
	SpoolDir           string   `toml:"spool_dir"`
	StateDir           string   `toml:"state_dir"`
	Settle             string   `toml:"settle"`
	Once               *bool    `toml:"once"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.hecship/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".hecship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("token", fc.Token, &cfg.Token)
	s.setString("server", fc.Server, &cfg.Server)
	s.setString("index", fc.Index, &cfg.Index)
	s.setString("host", fc.Host, &cfg.Host)
	s.setString("spool-dir", fc.SpoolDir, &cfg.SpoolDir)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)

	s.setInt("port", fc.Port, &cfg.Port)
	s.setInt("max-batch-bytes", fc.MaxBatchBytes, &cfg.MaxBatchBytes)
	s.setInt("pool-connections", fc.PoolConnections, &cfg.PoolConnections)
	s.setInt("pool-max-size", fc.PoolMaxSize, &cfg.PoolMaxSize)

	s.setIntPtr("max-retries", fc.MaxRetries, &cfg.MaxRetries)
	s.setFloatPtr("backoff", fc.BackoffFactor, &cfg.BackoffFactor)

	if err := s.setDuration("timeout", fc.Timeout, &cfg.Timeout); err != nil {
		return err
	}
	if err := s.setDuration("settle", fc.Settle, &cfg.Settle); err != nil {
		return err
	}

	s.setBool("tls", fc.UseTLS, &cfg.UseTLS)
	s.setBool("insecure", fc.InsecureSkipVerify, &cfg.InsecureSkipVerify)
	s.setBool("gzip", fc.Gzip, &cfg.Gzip)
	s.setBool("once", fc.Once, &cfg.Once)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
