package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Broker defaults.
const (
	DefaultHost      = "localhost"
	DefaultPort      = 5672
	DefaultVHost     = "/"
	DefaultQueueName = "rfid_messages"
)

// Config holds CLI configuration for tagrelay.
type Config struct {
	Host              string
	Port              int
	VHost             string
	QueueName         string
	Exchange          string
	RoutingKey        string
	Username          string
	Password          string
	UseSSL            bool
	ConnectionTimeout time.Duration
	RetryInterval     time.Duration
	Heartbeat         time.Duration

	FallbackDir string
	StateDir    string
	CatalogFile string

	ReadInterval        time.Duration
	GreenFlashDuration  time.Duration
	OrangeFlashInterval time.Duration

	LogLevel    string
	LogFile     string
	MetricsAddr string

	// ConfigFile is the file the configuration was loaded from, if any.
	ConfigFile string
	Simulate   bool
	Once       bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Host:                DefaultHost,
		Port:                DefaultPort,
		VHost:               DefaultVHost,
		QueueName:           DefaultQueueName,
		ConnectionTimeout:   5 * time.Second,
		RetryInterval:       30 * time.Second,
		Heartbeat:           60 * time.Second,
		ReadInterval:        2 * time.Second,
		GreenFlashDuration:  2 * time.Second,
		OrangeFlashInterval: 2 * time.Second,
		LogLevel:            "info",
	}
}

// DefaultHome returns $HOME/.tagrelay, or ".tagrelay" when the home
// directory is unknown.
func DefaultHome() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".tagrelay")
	}
	return ".tagrelay"
}

// SetDefaults fills derived values left empty.
func (c *Config) SetDefaults() {
	home := DefaultHome()
	if c.StateDir == "" {
		c.StateDir = home
	}
	if c.FallbackDir == "" {
		c.FallbackDir = c.StateDir
	}
	if c.CatalogFile == "" {
		c.CatalogFile = filepath.Join(home, "catalog.toml")
	}
	if c.VHost == "" {
		c.VHost = DefaultVHost
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate reports configuration problems. They are warnings: the service
// still starts and retries against whatever it was given.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Host == "" {
		warnings = append(warnings, "rabbitmq host is empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		warnings = append(warnings, fmt.Sprintf("rabbitmq port %d is outside 1..65535", c.Port))
	}
	if c.QueueName == "" {
		warnings = append(warnings, "queue name is empty")
	}
	if c.ReadInterval < 0 {
		warnings = append(warnings, "read interval is negative")
	}
	if c.GreenFlashDuration < 0 {
		warnings = append(warnings, "green flash duration is negative")
	}
	if c.RetryInterval <= 0 {
		warnings = append(warnings, "retry interval must be positive")
	}
	if c.ConnectionTimeout <= 0 {
		warnings = append(warnings, "connection timeout must be positive")
	}
	if c.CatalogFile != "" && !FileExists(c.CatalogFile) {
		warnings = append(warnings, fmt.Sprintf("catalog file %s does not exist", c.CatalogFile))
	}
	return warnings
}

// Masked returns a copy safe to log.
func (c Config) Masked() Config {
	if c.Password != "" {
		c.Password = "*****"
	}
	return c
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

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

// setIntFromString parses a string to int and sets the destination if valid.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
