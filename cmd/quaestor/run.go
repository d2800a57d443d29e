package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"steward-hq/quaestor/pkg/budget"
	"steward-hq/quaestor/pkg/config"
	"steward-hq/quaestor/pkg/telemetry/logging"
	"steward-hq/quaestor/pkg/throttle"
)

var runFlags struct {
	logLevel string
	watch    bool
	dryRun   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the admission control engine",
	Long: `Start the admission control engine with the specified configuration.

The engine seeds the system budget policies, installs the policies and
throttle configs declared in the configuration file, starts the usage
bucket sweeper, and serves Prometheus metrics.

Examples:
  # Start with default config
  quaestor run

  # Start with custom config
  quaestor run --config /etc/quaestor/quaestor.yaml

  # Reload policies when the config file changes
  quaestor run --watch

  # Validate config without starting
  quaestor run --dry-run`,
	RunE: runEngine,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", false, "reload policies when the config file changes")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	if _, err := logging.Setup(cfg.Logging); err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Quaestor v%s\n", Version)

	manager, service, err := buildEngine(cfg, cfg.Metrics.Enabled)
	if err != nil {
		return err
	}
	// Budget alerts go to the log; callers register richer sinks when
	// embedding the packages directly.
	manager.AddSink(budget.AlertSinkFunc(func(alert budget.Alert) error {
		slog.Warn("budget alert",
			"alert_id", alert.ID,
			"type", alert.Type,
			"severity", alert.Severity,
			"policy", alert.PolicyName,
			"current_usd", alert.CurrentUsageUSD,
			"limit_usd", alert.LimitUSD,
		)
		return nil
	}))

	fmt.Printf("✓ Budget policies loaded (%d policies)\n", len(manager.Policies()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Usage bucket sweeper
	sweeper := budget.NewSweeper(manager, budget.SweeperConfig{
		Schedule:     cfg.Sweeper.Schedule,
		RetentionAge: cfg.Sweeper.RetentionAge,
	})
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sweeper: %w", err)
	}
	defer sweeper.Stop()

	// Config watcher
	if runFlags.watch {
		watcher, err := config.NewWatcher(cfgFile, slog.Default())
		if err != nil {
			return fmt.Errorf("failed to create config watcher: %w", err)
		}
		go func() {
			err := watcher.Watch(ctx, func(next *config.Config) error {
				if err := applyBudgetConfig(manager, &next.Budget); err != nil {
					return err
				}
				applyThrottleConfig(service, &next.Throttle)
				return nil
			})
			if err != nil {
				slog.Error("config watcher exited", "error", err)
			}
		}()
		fmt.Printf("✓ Watching %s for changes\n", cfgFile)
	}

	// Metrics endpoint
	errChan := make(chan error, 1)
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              cfg.Metrics.ListenAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("metrics server starting", "address", cfg.Metrics.ListenAddress, "path", cfg.Metrics.Path)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Metrics.ListenAddress, cfg.Metrics.Path)
	}

	fmt.Println("\nPress Ctrl+C to stop")

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		fmt.Println("\nShutting down gracefully...")

		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", "error", err)
			}
		}

		fmt.Println("✓ Stopped")
		return nil
	}
}

var _ throttle.BudgetChecker = (*budget.Manager)(nil)
