package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/driverscout/internal/ai"
	"github.com/IshaanNene/driverscout/internal/api"
	"github.com/IshaanNene/driverscout/internal/repl"
)

var apiAddr string

// chatCmd creates the "chat" subcommand.
func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [report.md]",
		Short: "Ask a local model questions about a driver report",
		Long: `Start an interactive chat about a Markdown driver report. Without an
argument the shell starts empty; use 'fetch <service-tag>' or 'load <path>'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg)

			ctx, cancel := signalContext(logger)
			defer cancel()

			svc, _, cleanup, err := newService(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			client := ai.NewLLMClient(cfg.AI, logger)
			opts := []repl.Option{repl.WithRetriever(svc), repl.WithModel(client.Model())}
			if len(args) == 1 {
				sess, err := ai.NewChatSession(args[0])
				if err != nil {
					return err
				}
				opts = append(opts, repl.WithSession(sess))
			}
			return repl.New(client, logger, opts...).Run(ctx)
		},
	}
	return cmd
}

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the retrieval and chat HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if apiAddr != "" {
				cfg.API.Addr = apiAddr
			}
			logger := setupLogger(cfg)

			ctx, cancel := signalContext(logger)
			defer cancel()

			svc, metrics, cleanup, err := newService(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			srv := api.NewServer(cfg.API.Addr, svc, ai.NewLLMClient(cfg.AI, logger), metrics, logger)
			if cfg.API.MaxSessions > 0 {
				srv.SetMaxSessions(cfg.API.MaxSessions)
			}
			fmt.Printf("DriverScout API listening on %s\n", cfg.API.Addr)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&apiAddr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output directory")
	cmd.Flags().BoolVar(&withBrowser, "browser", false, "enable the headless browser strategy")

	return cmd
}
