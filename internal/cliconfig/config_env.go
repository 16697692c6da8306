package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables.
// Broker settings use the RABBITMQ_* names, paths use TAGRELAY_*.
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("host", os.Getenv("RABBITMQ_HOST"), &cfg.Host)
	s.setString("vhost", os.Getenv("RABBITMQ_VHOST"), &cfg.VHost)
	s.setString("queue", os.Getenv("RABBITMQ_QUEUE"), &cfg.QueueName)
	s.setString("exchange", os.Getenv("RABBITMQ_EXCHANGE"), &cfg.Exchange)
	s.setString("username", os.Getenv("RABBITMQ_USERNAME"), &cfg.Username)
	s.setString("password", os.Getenv("RABBITMQ_PASSWORD"), &cfg.Password)
	s.setString("log-level", os.Getenv("LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-file", os.Getenv("LOG_FILE"), &cfg.LogFile)
	s.setString("catalog", os.Getenv("TAGRELAY_CATALOG_FILE"), &cfg.CatalogFile)
	s.setString("fallback-dir", os.Getenv("TAGRELAY_FALLBACK_DIR"), &cfg.FallbackDir)
	s.setString("state-dir", os.Getenv("TAGRELAY_STATE_DIR"), &cfg.StateDir)

	if err := s.setIntFromString("port", os.Getenv("RABBITMQ_PORT"), &cfg.Port); err != nil {
		return err
	}
	if err := s.setDuration("retry-interval", os.Getenv("TAGRELAY_RETRY_INTERVAL"), &cfg.RetryInterval); err != nil {
		return err
	}

	s.setBoolFromString("ssl", os.Getenv("RABBITMQ_USE_SSL"), &cfg.UseSSL)

	return nil
}
