package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (HECSHIP_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("token", os.Getenv("HECSHIP_TOKEN"), &cfg.Token)
	s.setString("server", os.Getenv("HECSHIP_SERVER"), &cfg.Server)
	s.setString("index", os.Getenv("HECSHIP_INDEX"), &cfg.Index)
	s.setString("host", os.Getenv("HECSHIP_HOST"), &cfg.Host)
	s.setString("spool-dir", os.Getenv("HECSHIP_SPOOL_DIR"), &cfg.SpoolDir)
	s.setString("state-dir", os.Getenv("HECSHIP_STATE_DIR"), &cfg.StateDir)

	if err := s.setIntFromString("port", os.Getenv("HECSHIP_PORT"), &cfg.Port); err != nil {
		return err
	}
	if err := s.setIntFromString("max-batch-bytes", os.Getenv("HECSHIP_MAX_BATCH_BYTES"), &cfg.MaxBatchBytes); err != nil {
		return err
	}
	if err := s.setIntFromString("max-retries", os.Getenv("HECSHIP_MAX_RETRIES"), &cfg.MaxRetries); err != nil {
		return err
	}
	if err := s.setFloatFromString("backoff", os.Getenv("HECSHIP_BACKOFF_FACTOR"), &cfg.BackoffFactor); err != nil {
		return err
	}
	if err := s.setIntFromString("pool-connections", os.Getenv("HECSHIP_POOL_CONNECTIONS"), &cfg.PoolConnections); err != nil {
		return err
	}
	if err := s.setIntFromString("pool-max-size", os.Getenv("HECSHIP_POOL_MAX_SIZE"), &cfg.PoolMaxSize); err != nil {
		return err
	}
	if err := s.setDuration("timeout", os.Getenv("HECSHIP_TIMEOUT"), &cfg.Timeout); err != nil {
		return err
	}
	if err := s.setDuration("settle", os.Getenv("HECSHIP_SETTLE"), &cfg.Settle); err != nil {
		return err
	}

	s.setBoolFromString("tls", os.Getenv("HECSHIP_USE_TLS"), &cfg.UseTLS)
	s.setBoolFromString("insecure", os.Getenv("HECSHIP_INSECURE_SKIP_VERIFY"), &cfg.InsecureSkipVerify)
	s.setBoolFromString("gzip", os.Getenv("HECSHIP_GZIP"), &cfg.Gzip)
	s.setBoolFromString("once", os.Getenv("HECSHIP_ONCE"), &cfg.Once)

	return nil
}
