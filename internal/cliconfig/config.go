package cliconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/asaskevich/govalidator"

	"github.com/bft-labs/hecship/pkg/hec"
)

// DefaultSettle is how long a spool file must stay quiet before it ships.
const DefaultSettle = 500 * time.Millisecond

// Config holds CLI configuration for hecship.
type Config struct {
	Token  string
	Server string
	Port   int

	UseTLS             bool
	InsecureSkipVerify bool

	Index string
	Host  string

	MaxBatchBytes int
	MaxRetries    int
	BackoffFactor float64

	PoolConnections int
	PoolMaxSize     int
	Timeout         time.Duration
	Gzip            bool

	SpoolDir string
	StateDir string
	Settle   time.Duration

	Once bool
}

// DefaultConfig returns a Config with default values. The token is
// seeded from HECSHIP_TOKEN so it never has to appear on a command line.
func DefaultConfig() Config {
	return Config{
		Token:           os.Getenv("HECSHIP_TOKEN"),
		Port:            hec.DefaultPort,
		UseTLS:          true,
		MaxBatchBytes:   hec.DefaultMaxBatchBytes,
		MaxRetries:      hec.DefaultMaxRetries,
		BackoffFactor:   hec.DefaultBackoffFactor,
		PoolConnections: hec.DefaultPoolConnections,
		PoolMaxSize:     hec.DefaultPoolMaxSize,
		Timeout:         hec.DefaultTimeout,
		Settle:          DefaultSettle,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("token is required (--token or HECSHIP_TOKEN)")
	}
	if c.Server == "" {
		return fmt.Errorf("server is required")
	}
	if !govalidator.IsDNSName(c.Server) && !govalidator.IsIP(c.Server) {
		return fmt.Errorf("server %q is not a hostname or IP address", c.Server)
	}
	if !govalidator.IsPort(strconv.Itoa(c.Port)) {
		return fmt.Errorf("port %d is out of range", c.Port)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	if c.BackoffFactor < 0 {
		return fmt.Errorf("backoff factor must not be negative")
	}

	if c.StateDir == "" && c.SpoolDir != "" {
		c.StateDir = c.SpoolDir
	}

	return nil
}

// ClientConfig converts the CLI configuration into the client's.
func (c Config) ClientConfig() hec.Config {
	return hec.Config{
		Token:              c.Token,
		Server:             c.Server,
		Port:               c.Port,
		UseTLS:             c.UseTLS,
		InsecureSkipVerify: c.InsecureSkipVerify,
		Index:              c.Index,
		Host:               c.Host,
		MaxBatchBytes:      c.MaxBatchBytes,
		MaxRetries:         c.MaxRetries,
		BackoffFactor:      c.BackoffFactor,
		PoolConnections:    c.PoolConnections,
		PoolMaxSize:        c.PoolMaxSize,
		Timeout:            c.Timeout,
		Gzip:               c.Gzip,
	}
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setIntPtr sets an int value from a pointer if not nil and flag not
// changed. Zero passes through, for fields where zero is meaningful.
func (s *configSetter) setIntPtr(flag string, value *int, dst *int) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setFloatPtr sets a float64 value from a pointer if not nil and flag
// not changed.
func (s *configSetter) setFloatPtr(flag string, value *float64, dst *float64) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination.
// Negative values are ignored. Used for environment variables that
// come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination.
// Negative values are ignored. Used for environment variables that
// come as strings.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f < 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
