// Command ravel-daemon hosts the dispatcher loop and the daemon
// lifecycle subcommands (start/stop/status) that control it, structured
// as a cobra command tree.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"

	"github.com/nkh361/ravel-scheduler/config"
	"github.com/nkh361/ravel-scheduler/daemon"
	"github.com/nkh361/ravel-scheduler/dispatcher"
	"github.com/nkh361/ravel-scheduler/metrics"
	"github.com/nkh361/ravel-scheduler/probe"
	"github.com/nkh361/ravel-scheduler/store/sqlite"
	"github.com/nkh361/ravel-scheduler/worker"
)

const version = "0.1.0"

var pollInterval = time.Second

func main() {
	if err := buildRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	root := &cobra.Command{
		Use:     "ravel-daemon",
		Short:   "ravel scheduler daemon",
		Version: version,
	}

	root.AddCommand(buildRunCommand())
	root.AddCommand(buildStartCommand())
	root.AddCommand(buildStopCommand())
	root.AddCommand(buildStatusCommand())
	return root
}

func buildRunCommand() *cobra.Command {
	var metricsPort int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the dispatcher loop in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForeground(cmd.Context(), metricsPort)
		},
	}
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "expose Prometheus metrics on this port (0 disables)")
	return cmd
}

func buildStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "start the daemon as a detached background process",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			self, err := os.Executable()
			if err != nil {
				return err
			}
			if daemon.IsRunning(cfg) {
				fmt.Println("daemon already running")
				return nil
			}
			if err := daemon.Start(cfg, self, []string{"run"}); err != nil {
				return err
			}
			fmt.Println("daemon started")
			return nil
		},
	}
}

func buildStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !daemon.IsRunning(cfg) {
				fmt.Println("daemon not running")
				return nil
			}
			if err := daemon.Stop(cfg); err != nil {
				return err
			}
			fmt.Println("daemon stopped")
			return nil
		},
	}
}

func buildStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "report whether the daemon is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			fmt.Println(daemon.DaemonStatus(cfg))
			return nil
		},
	}
}

func runForeground(ctx context.Context, metricsPort int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	log.Info("ravel daemon starting", "db_path", cfg.DBPath, "max_workers", cfg.MaxWorkers)

	sqlDB, err := sql.Open("sqlite", cfg.DBPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer sqlDB.Close()
	sqlDB.SetMaxOpenConns(1)

	db := bun.NewDB(sqlDB, sqlitedialect.New())
	if err := sqlite.InitDB(ctx, db); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	store := sqlite.NewStore(db)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var collector *metrics.Collector
	if metricsPort > 0 {
		collector = metrics.NewCollector(prometheus.DefaultRegisterer)
		go func() {
			if err := metrics.StartServer(ctx, metricsPort); err != nil {
				log.Error("metrics server stopped", "err", err)
			}
		}()
	}

	prober := probe.NewResource(cfg.NoGPU)
	runner := worker.NewRunner(store, cfg.GPUEnvVar, log)
	disp := dispatcher.New(store, prober, runner, dispatcher.Config{
		MaxWorkers:   cfg.MaxWorkers,
		MemoryLimits: cfg.MemoryLimits,
		PollInterval: pollInterval,
	}, log)
	if collector != nil {
		runner.WithMetrics(collector)
		disp.WithMetrics(collector)
	}

	reconciler := daemon.NewReconciler(store, 30*time.Second, log)

	if err := disp.Start(ctx); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}
	if err := reconciler.Start(ctx); err != nil {
		return fmt.Errorf("start reconciler: %w", err)
	}

	<-ctx.Done()
	log.Info("ravel daemon shutting down")

	if err := reconciler.Stop(5 * time.Second); err != nil {
		log.Error("reconciler stop", "err", err)
	}
	if err := disp.Stop(5 * time.Second); err != nil {
		log.Error("dispatcher stop", "err", err)
	}
	return nil
}
