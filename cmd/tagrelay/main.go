package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/tagrelay"
	"github.com/bft-labs/tagrelay/internal/cliconfig"
	"github.com/bft-labs/tagrelay/pkg/log"
)

const helpDescription = `
Pair RFID object and location scans and deliver them to RabbitMQ.

Highlights:
  - Scan an object tag, then a location tag (either order) to send one message.
  - Messages are queued in a local JSON file while the broker is down and
    replayed in order once it is back.
  - Configure via file, environment (RABBITMQ_*, TAGRELAY_*), or flags.
`

var exampleUsage = strings.TrimSpace(`
  tagrelay --host broker.local --queue rfid_messages
  tagrelay --config /etc/tagrelay/config.toml --simulate
  tagrelay --status
  tagrelay catalog add object RFID1 name=Drill serial=42
`)

var errInvalidConfig = errors.New("configuration has warnings")

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var (
		cfgPath      string
		showStatus   bool
		validateOnly bool
	)

	boot, _, _ := cliconfig.NewLogger("info", "")

	root := &cobra.Command{
		Use:           "tagrelay",
		Short:         "Pair RFID object/location scans and deliver them to RabbitMQ",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd, &cfg, cfgPath); err != nil {
				return err
			}

			if validateOnly {
				return printWarnings(cmd, cfg.Validate())
			}

			logger, closer, err := cliconfig.NewLogger(cfg.LogLevel, cfg.LogFile)
			if err != nil {
				return err
			}
			defer closer.Close()

			for _, w := range cfg.Validate() {
				logger.Warn().Msg(w)
			}
			logger.Info().Interface("config", cfg.Masked()).Msg("configuration")

			r, err := tagrelay.New(cfg, tagrelay.WithLogger(log.NewZerologAdapterWithLogger(logger)))
			if err != nil {
				return fmt.Errorf("create relay: %w", err)
			}
			defer func() {
				if err := r.Close(); err != nil {
					logger.Error().Err(err).Msg("shutdown")
				}
			}()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if showStatus {
				return printStatus(ctx, cmd, r)
			}

			if err := r.Run(ctx); err != nil {
				return err
			}
			logger.Info().Msg("stopped")
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.tagrelay/config.toml)")
	root.PersistentFlags().StringVar(&cfg.CatalogFile, "catalog", cfg.CatalogFile, "item catalog file (default: $HOME/.tagrelay/catalog.toml)")

	root.Flags().StringVar(&cfg.Host, "host", cfg.Host, "RabbitMQ host")
	root.Flags().IntVar(&cfg.Port, "port", cfg.Port, "RabbitMQ port")
	root.Flags().StringVar(&cfg.VHost, "vhost", cfg.VHost, "RabbitMQ virtual host")
	root.Flags().StringVar(&cfg.QueueName, "queue", cfg.QueueName, "queue messages are delivered to")
	root.Flags().StringVar(&cfg.Exchange, "exchange", cfg.Exchange, "direct exchange to publish through (default: the default exchange)")
	root.Flags().StringVar(&cfg.RoutingKey, "routing-key", cfg.RoutingKey, "routing key (default: the queue name)")
	root.Flags().StringVar(&cfg.Username, "username", cfg.Username, "RabbitMQ username")
	root.Flags().StringVar(&cfg.Password, "password", cfg.Password, "RabbitMQ password")
	root.Flags().BoolVar(&cfg.UseSSL, "ssl", cfg.UseSSL, "connect with TLS (amqps)")
	root.Flags().DurationVar(&cfg.ConnectionTimeout, "connection-timeout", cfg.ConnectionTimeout, "broker connection timeout")
	root.Flags().DurationVar(&cfg.RetryInterval, "retry-interval", cfg.RetryInterval, "interval between reconnect attempts")
	root.Flags().DurationVar(&cfg.Heartbeat, "heartbeat", cfg.Heartbeat, "AMQP heartbeat interval")

	root.Flags().StringVar(&cfg.FallbackDir, "fallback-dir", cfg.FallbackDir, "directory of the fallback queue file (default: state dir)")
	root.Flags().StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for stats.json (default: $HOME/.tagrelay)")

	root.Flags().DurationVar(&cfg.ReadInterval, "read-interval", cfg.ReadInterval, "pause between scan cycles")
	root.Flags().DurationVar(&cfg.GreenFlashDuration, "green-flash", cfg.GreenFlashDuration, "how long scan signals are shown")
	root.Flags().DurationVar(&cfg.OrangeFlashInterval, "orange-flash", cfg.OrangeFlashInterval, "flash interval of the disconnected signal")

	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warning, error)")
	root.Flags().StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "append JSON logs to this file instead of stderr")
	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address (e.g. :9100)")

	root.Flags().BoolVar(&cfg.Simulate, "simulate", cfg.Simulate, "read random catalog ids instead of stdin")
	root.Flags().BoolVar(&cfg.Once, "once", cfg.Once, "stop after the first delivered message")
	root.Flags().BoolVar(&showStatus, "status", false, "print broker, fallback queue and statistics status and exit")
	root.Flags().BoolVar(&validateOnly, "validate", false, "print configuration warnings and exit")

	root.AddCommand(newCatalogCmd(&cfg, &cfgPath))

	if err := root.Execute(); err != nil {
		if !errors.Is(err, errInvalidConfig) {
			boot.Error().Err(err).Msg("tagrelay")
		}
		os.Exit(1)
	}
}

// resolveConfig applies, in increasing precedence, the config file,
// environment variables and flags, then fills derived defaults.
func resolveConfig(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath string) error {
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
		cfg.ConfigFile = cfgFile
	} else if cfgPath != "" {
		return fmt.Errorf("config file %s not found", cfgPath)
	}

	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return err
	}

	cfg.SetDefaults()
	return nil
}

func printWarnings(cmd *cobra.Command, warnings []string) error {
	out := cmd.OutOrStdout()
	if len(warnings) == 0 {
		fmt.Fprintln(out, "configuration OK")
		return nil
	}
	for _, w := range warnings {
		fmt.Fprintln(out, "warning:", w)
	}
	return errInvalidConfig
}

func printStatus(ctx context.Context, cmd *cobra.Command, r *tagrelay.Relay) error {
	r.Connect(ctx)
	b, err := json.MarshalIndent(r.Status(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
