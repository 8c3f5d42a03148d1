package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/hecship/internal/cliconfig"
	"github.com/bft-labs/hecship/internal/shipper"
	"github.com/bft-labs/hecship/internal/spool"
	"github.com/bft-labs/hecship/pkg/checkpoint"
	"github.com/bft-labs/hecship/pkg/hec"
	logAdapter "github.com/bft-labs/hecship/pkg/log"
)

const helpBanner = `
 _                       _      _
| |__    ___   ___  ___ | |__  (_) _ __
| '_ \  / _ \ / __|/ __|| '_ \ | || '_ \
| | | ||  __/| (__ \__ \| | | || || |_) |
|_| |_| \___| \___||___/|_| |_||_|| .__/
                                  |_|
`

const helpDescription = `
Ship newline-delimited JSON events to an HTTP Event Collector.

Reads events from stdin or file arguments, or watches a spool directory
for *.ndjson drops (--spool-dir). Events are batched by size, retried
with exponential backoff, and counted so you can see what got through.

The token is taken from --token, HECSHIP_TOKEN, or the config file
(default $HOME/.hecship/config.toml).
`

var longHelp = strings.TrimSpace(helpBanner) + "\n\n" + strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  hecship --server hec.example.com events.ndjson
  cat events.ndjson | hecship --server hec.example.com
  hecship --server hec.example.com --spool-dir /var/spool/hec
  hecship --server hec.example.com --health
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string
	var healthOnly bool

	log := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "hecship [file ...]",
		Short:   "Ship newline-delimited JSON events to an HTTP Event Collector",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load config file first (default $HOME/.hecship/config.toml),
			// then env vars, with explicitly set flags winning over both.
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
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			// Log configuration (masking the token)
			logCfg := cfg
			if len(logCfg.Token) > 0 {
				logCfg.Token = "*****"
			}
			log.Info().Interface("config", logCfg).Msg("configuration")

			adapter := logAdapter.NewZerologAdapterWithLogger(log)

			client, err := hec.New(cfg.ClientConfig(), hec.WithLogger(adapter))
			if err != nil {
				return fmt.Errorf("create client: %w", err)
			}

			// Graceful shutdown on SIGINT/SIGTERM
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				select {
				case <-sigCh:
					log.Info().Msg("received signal, stopping...")
					cancel()
				case <-ctx.Done():
				}
			}()

			if healthOnly {
				err := client.Healthy(ctx)
				if cerr := client.Close(); err == nil {
					err = cerr
				}
				if err != nil {
					return fmt.Errorf("health check: %w", err)
				}
				log.Info().Msg("collector is healthy")
				return nil
			}

			runErr := run(ctx, &cfg, client, adapter, args)

			if cerr := client.Close(); runErr == nil {
				runErr = cerr
			}

			m := client.Metrics()
			log.Info().
				Int64("sent", m.Sent).
				Int64("retried", m.Retried).
				Int64("errored", m.Errored).
				Msg("delivery totals")

			return runErr
		},
	}

	// Flags
	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.hecship/config.toml)")
	root.Flags().StringVar(&cfg.Token, "token", cfg.Token, "collector token (prefer HECSHIP_TOKEN)")
	root.Flags().StringVar(&cfg.Server, "server", cfg.Server, "collector hostname or IP")
	root.Flags().IntVar(&cfg.Port, "port", cfg.Port, "collector port")
	root.Flags().BoolVar(&cfg.UseTLS, "tls", cfg.UseTLS, "use https")
	root.Flags().BoolVar(&cfg.InsecureSkipVerify, "insecure", cfg.InsecureSkipVerify, "skip TLS certificate verification")

	root.Flags().StringVar(&cfg.Index, "index", cfg.Index, "index assigned to events that carry none")
	root.Flags().StringVar(&cfg.Host, "host", cfg.Host, "host assigned to events that carry none (defaults to the local hostname)")

	root.Flags().IntVar(&cfg.MaxBatchBytes, "max-batch-bytes", cfg.MaxBatchBytes, "maximum serialized bytes per batch")
	root.Flags().IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "retries per batch after the first attempt (0 disables)")
	root.Flags().Float64Var(&cfg.BackoffFactor, "backoff", cfg.BackoffFactor, "backoff factor in seconds; wait is backoff * 2^attempt")

	root.Flags().IntVar(&cfg.PoolConnections, "pool-connections", cfg.PoolConnections, "idle connections kept across all hosts")
	root.Flags().IntVar(&cfg.PoolMaxSize, "pool-max-size", cfg.PoolMaxSize, "connection cap per collector host")
	root.Flags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP timeout per request attempt")
	root.Flags().BoolVar(&cfg.Gzip, "gzip", cfg.Gzip, "gzip request bodies")

	root.Flags().StringVar(&cfg.SpoolDir, "spool-dir", cfg.SpoolDir, "watch this directory for *.ndjson event files")
	root.Flags().StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "checkpoint directory (defaults to spool-dir)")
	if err := root.Flags().MarkHidden("state-dir"); err != nil {
		log.Info().Err(err).Msg("failed to hide state-dir flag")
	}
	root.Flags().DurationVar(&cfg.Settle, "settle", cfg.Settle, "quiet period before a spool file ships")
	root.Flags().BoolVar(&cfg.Once, "once", cfg.Once, "ship spool files present now and exit")
	root.Flags().BoolVar(&healthOnly, "health", false, "check collector health and exit")

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("hecship")
		os.Exit(1)
	}
}

// run ships events from whichever source the configuration selects:
// a watched spool directory, file arguments, or stdin.
func run(ctx context.Context, cfg *cliconfig.Config, client *hec.Client, logger logAdapter.Logger, args []string) error {
	if cfg.SpoolDir != "" {
		repo := checkpoint.NewFileRepository(cfg.StateDir)
		ship := shipper.New(client, repo, logger)

		if cfg.Once {
			return ship.ShipDir(ctx, cfg.SpoolDir)
		}

		watchCtx, watchCancel := context.WithCancel(ctx)
		defer watchCancel()

		w := spool.NewWatcher(cfg.SpoolDir, cfg.Settle, logger)

		// The watcher failing (missing directory, fd limits) must unblock
		// the shipper, which otherwise waits on the file channel.
		var watchErr error
		done := make(chan struct{})
		go func() {
			watchErr = w.Run(watchCtx)
			watchCancel()
			close(done)
		}()

		if err := ship.ShipSpool(watchCtx, w.Files()); err != nil {
			return err
		}
		<-done
		return watchErr
	}

	ship := shipper.New(client, nil, logger)

	if len(args) == 0 {
		count, err := ship.ShipStream(ctx, os.Stdin, "stdin")
		if err != nil {
			return err
		}
		logger.Info("stream shipped",
			logAdapter.String("source", "stdin"),
			logAdapter.Int("events", count))
		return nil
	}

	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		count, err := ship.ShipStream(ctx, f, path)
		f.Close()
		if err != nil {
			return err
		}
		logger.Info("stream shipped",
			logAdapter.String("source", path),
			logAdapter.Int("events", count))
	}
	return nil
}
