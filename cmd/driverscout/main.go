package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/driverscout/internal/config"
	"github.com/IshaanNene/driverscout/internal/observability"
	"github.com/IshaanNene/driverscout/internal/retrieval"
	"github.com/IshaanNene/driverscout/internal/storage"
)

var (
	cfgFile     string
	verbose     bool
	outputPath  string
	logPath     string
	strategies  string
	withBrowser bool
	aiModel     string
	aiEndpoint  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "driverscout",
		Short: "Retrieve Dell driver metadata by service tag",
		Long: `DriverScout retrieves driver and package metadata for a Dell service tag.

It probes several retrieval strategies in order (JSON API, HTML markup,
headless browser, generic fallback), normalizes what it finds and writes a
JSON document plus a Markdown report. A local Ollama model can answer
questions about the report.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&aiModel, "model", "", "Ollama model (e.g. llama3, mistral, gemma, phi3)")
	rootCmd.PersistentFlags().StringVar(&aiEndpoint, "ollama", "", "Ollama server address")

	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads, overrides and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	applyCLIOverrides(cfg)

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down...", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// newService wires the retrieval service, the optional Mongo archive and
// the optional metrics endpoint. The returned cleanup closes the archive.
func newService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*retrieval.Service, *observability.Metrics, func(), error) {
	metrics := observability.NewMetrics(logger)
	opts := []retrieval.Option{retrieval.WithMetrics(metrics)}
	cleanup := func() {}

	if cfg.Storage.Mongo.Enabled {
		archive, err := storage.NewMongoStorage(ctx, cfg.Storage.Mongo, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect archive: %w", err)
		}
		opts = append(opts, retrieval.WithArchive(archive))
		cleanup = func() {
			if err := archive.Close(); err != nil {
				logger.Warn("failed to close archive", "error", err)
			}
		}
	}

	if cfg.Metrics.Enabled {
		if err := metrics.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
	}

	return retrieval.NewService(cfg, logger, opts...), metrics, cleanup, nil
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("DriverScout %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			applyCLIOverrides(cfg)
			fmt.Printf("Upstream:\n")
			fmt.Printf("  Origin:            %s\n", cfg.Upstream.Origin)
			fmt.Printf("  Drivers Page:      %s\n", cfg.Upstream.DriversPath)
			fmt.Printf("  API Endpoints:     %d configured\n", len(cfg.Upstream.APIEndpoints))
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Timeout:           %s\n", cfg.Fetcher.Timeout)
			fmt.Printf("  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("  User Agents:       %d configured\n", len(cfg.Fetcher.UserAgents))
			fmt.Printf("  Cloudflare Bypass: %v\n", cfg.Fetcher.CloudflareBypass)
			fmt.Printf("\nProbe:\n")
			fmt.Printf("  Strategies:        %s\n", strings.Join(cfg.Probe.Strategies, ", "))
			fmt.Printf("  Delay:             %s - %s\n", cfg.Probe.MinDelay, cfg.Probe.MaxDelay)
			fmt.Printf("  Strategy Timeout:  %s\n", cfg.Probe.StrategyTimeout)
			fmt.Printf("\nBrowser:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Browser.Enabled)
			fmt.Printf("  Headless:          %v\n", cfg.Browser.Headless)
			fmt.Printf("  Stealth:           %v\n", cfg.Browser.Stealth)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Output Path:       %s\n", cfg.Storage.OutputPath)
			fmt.Printf("  Log Path:          %s\n", cfg.Storage.LogPath)
			fmt.Printf("  Mongo Archive:     %v\n", cfg.Storage.Mongo.Enabled)
			fmt.Printf("\nAI:\n")
			fmt.Printf("  Endpoint:          %s\n", cfg.AI.Endpoint)
			fmt.Printf("  Model:             %s\n", cfg.AI.Model)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			fmt.Printf("\nAPI:\n")
			fmt.Printf("  Address:           %s\n", cfg.API.Addr)
			return nil
		},
	}
	return cmd
}

// setupLogger creates a structured logger.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Logging.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if outputPath != "" {
		cfg.Storage.OutputPath = outputPath
	}
	if logPath != "" {
		cfg.Storage.LogPath = logPath
	}
	if strategies != "" {
		var names []string
		for _, s := range strings.Split(strategies, ",") {
			if s = strings.TrimSpace(strings.ToLower(s)); s != "" {
				names = append(names, s)
			}
		}
		cfg.Probe.Strategies = names
	}
	if withBrowser {
		cfg.Browser.Enabled = true
	}
	if aiModel != "" {
		cfg.AI.Model = aiModel
	}
	if aiEndpoint != "" {
		cfg.AI.Endpoint = aiEndpoint
	}
}
