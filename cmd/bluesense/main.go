package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spacesedan/bluesense/config"
	"github.com/spacesedan/bluesense/internal/clients"
	"github.com/spacesedan/bluesense/internal/logging"
	"github.com/spacesedan/bluesense/internal/monitoring"
	"github.com/spacesedan/bluesense/internal/processing"
	"github.com/spacesedan/bluesense/internal/quota"
	"github.com/spacesedan/bluesense/internal/sentiment"
	"github.com/spacesedan/bluesense/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	port       int
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "bluesense",
	Short:        "Sentiment dashboard for Bluesky posts",
	Long:         "BlueSense searches Bluesky for a topic, scores every post's sentiment and shows the results as a dashboard.",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		env := os.Getenv("APP_ENV")
		if env == "" {
			env = "dev"
		}
		config.LoadEnv(env)

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logging.InitLogger(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides server.port)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("bluesense", version)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		deps, err := buildDeps(ctx, cfg)
		if err != nil {
			return err
		}
		defer deps.Close()

		if err := deps.bluesky.Connect(ctx); err != nil {
			return fmt.Errorf("connecting to Bluesky: %w", err)
		}

		scorerHealthy := &atomic.Bool{}
		scorerHealthy.Store(true)
		go monitoring.MonitorScorerHealth(ctx, deps.scorer, deps.limiter, cfg.Sentiment.HealthCheckInterval, scorerHealthy)

		pipeline := processing.NewPipeline(cfg, deps.bluesky, deps.scorer, deps.selection, deps.limiter)
		srv, err := server.New(pipeline, server.ScorerStatus{
			Provider: deps.selection.Provider,
			Degraded: deps.selection.Degraded,
			Healthy:  scorerHealthy,
		}, cfg.Server.RequestTimeout)
		if err != nil {
			return err
		}

		listenPort := cfg.Server.Port
		if port > 0 {
			listenPort = port
		}
		return server.Serve(ctx, srv.Handler(), listenPort)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Test the Bluesky and sentiment API connections",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		deps, err := buildDeps(ctx, cfg)
		if err != nil {
			return err
		}
		defer deps.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "=== BlueSense API Connection Tests ===")
		if deps.selection.Degraded {
			fmt.Fprintf(out, "Note: %s, checking the local fallback scorer.\n", deps.selection.Reason)
		}
		fmt.Fprintln(out)

		results := monitoring.CheckConnections(ctx, deps.bluesky, deps.scorer)
		if deps.valkey != nil {
			results = append(results, monitoring.CheckQuotaStore(ctx, deps.valkey))
		}
		printResults(out, results)

		if monitoring.Failed(results) {
			fmt.Fprintln(out, "\nSome checks failed. Please check the messages above.")
			return errors.New("connection checks failed")
		}
		fmt.Fprintln(out, "\nAll checks passed. Your environment is set up correctly.")
		return nil
	},
}

func printResults(out io.Writer, results []monitoring.CheckResult) {
	for _, r := range results {
		line := fmt.Sprintf("%-36s %s", r.Name+":", r.Status)
		if r.Detail != "" {
			line += " (" + r.Detail + ")"
		}
		fmt.Fprintln(out, line)
	}
}

type deps struct {
	bluesky   *clients.BlueskyClient
	scorer    sentiment.Scorer
	selection sentiment.Selection
	limiter   processing.Reserver
	valkey    *clients.ValkeyClient
	closers   []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func buildDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	d := &deps{bluesky: clients.NewBlueskyClient(cfg.Bluesky)}

	scorer, selection, err := sentiment.NewScorer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating %s scorer: %w", cfg.Sentiment.Provider, err)
	}
	d.scorer = scorer
	d.selection = selection
	if closer, ok := scorer.(io.Closer); ok {
		d.closers = append(d.closers, func() { _ = closer.Close() })
	}

	slog.Info("[Main] Scorer selected",
		slog.String("provider", selection.Provider),
		slog.Bool("degraded", selection.Degraded))

	// Local scoring is free; only remote backends are metered.
	if selection.Provider == sentiment.PROVIDER_VADER {
		return d, nil
	}

	var counter quota.Counter
	if cfg.Valkey.InitAddress != "" {
		valkeyClient, err := clients.NewValkeyClient(ctx, cfg.Valkey)
		if err != nil {
			slog.Warn("[Main] Valkey unavailable, counting quota in memory",
				slog.String("error", err.Error()))
		} else {
			counter = valkeyClient
			d.valkey = valkeyClient
			d.closers = append(d.closers, valkeyClient.Close)
		}
	}
	d.limiter = quota.NewLimiter(cfg.Quota, counter)
	return d, nil
}
