package cliconfig

import (
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Host                string `toml:"rabbitmq_host"`
	Port                int    `toml:"rabbitmq_port"`
	VHost               string `toml:"rabbitmq_vhost"`
	QueueName           string `toml:"queue_name"`
	Exchange            string `toml:"exchange"`
	RoutingKey          string `toml:"routing_key"`
	Username            string `toml:"username"`
	Password            string `toml:"password"`
	UseSSL              *bool  `toml:"use_ssl"`
	ConnectionTimeout   string `toml:"connection_timeout"`
	RetryInterval       string `toml:"retry_interval"`
	Heartbeat           string `toml:"heartbeat"`
	FallbackDir         string `toml:"fallback_dir"`
	StateDir            string `toml:"state_dir"`
	CatalogFile         string `toml:"catalog_file"`
	ReadInterval        string `toml:"read_interval"`
	GreenFlashDuration  string `toml:"green_flash_duration"`
	OrangeFlashInterval string `toml:"orange_flash_interval"`
	LogLevel            string `toml:"log_level"`
	LogFile             string `toml:"log_file"`
	MetricsAddr         string `toml:"metrics_addr"`
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

// DefaultConfigPath returns ~/.tagrelay/config.toml.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".tagrelay", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("host", fc.Host, &cfg.Host)
	s.setString("vhost", fc.VHost, &cfg.VHost)
	s.setString("queue", fc.QueueName, &cfg.QueueName)
	s.setString("exchange", fc.Exchange, &cfg.Exchange)
	s.setString("routing-key", fc.RoutingKey, &cfg.RoutingKey)
	s.setString("username", fc.Username, &cfg.Username)
	s.setString("password", fc.Password, &cfg.Password)
	s.setString("fallback-dir", fc.FallbackDir, &cfg.FallbackDir)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("catalog", fc.CatalogFile, &cfg.CatalogFile)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-file", fc.LogFile, &cfg.LogFile)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)

	s.setInt("port", fc.Port, &cfg.Port)
	s.setBool("ssl", fc.UseSSL, &cfg.UseSSL)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"connection-timeout", fc.ConnectionTimeout, &cfg.ConnectionTimeout},
		{"retry-interval", fc.RetryInterval, &cfg.RetryInterval},
		{"heartbeat", fc.Heartbeat, &cfg.Heartbeat},
		{"read-interval", fc.ReadInterval, &cfg.ReadInterval},
		{"green-flash", fc.GreenFlashDuration, &cfg.GreenFlashDuration},
		{"orange-flash", fc.OrangeFlashInterval, &cfg.OrangeFlashInterval},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}
	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
