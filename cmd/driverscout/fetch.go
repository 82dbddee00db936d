package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/driverscout/internal/ai"
	"github.com/IshaanNene/driverscout/internal/repl"
)

var fetchChat bool

// fetchCmd creates the "fetch" subcommand.
func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <service-tag>",
		Short: "Retrieve driver metadata for a service tag",
		Long: `Retrieve driver metadata for a Dell service tag and write a JSON document
and a Markdown report. When no strategy finds any driver the report holds a
single record pointing at the Dell support site.`,
		Args: cobra.ExactArgs(1),
		RunE: runFetch,
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output directory (json/ and markdown/ are created inside)")
	cmd.Flags().StringVar(&logPath, "logs", "", "diagnostic log directory")
	cmd.Flags().StringVar(&strategies, "strategies", "", "comma-separated strategy order (api,markup,browser,generic)")
	cmd.Flags().BoolVar(&withBrowser, "browser", false, "enable the headless browser strategy")
	cmd.Flags().BoolVar(&fetchChat, "chat", false, "start a chat about the report afterwards")

	return cmd
}

func runFetch(cmd *cobra.Command, args []string) error {
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

	start := time.Now()
	res, err := svc.Retrieve(ctx, args[0])
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if res.Degraded {
		fmt.Println("\n⚠️  No driver information found. The website structure may have changed.")
		fmt.Println("   The report links to the Dell support site instead.")
	} else {
		fmt.Printf("\n✅ Found %d drivers via %s in %s\n", len(res.Document.Drivers), res.Strategy, elapsed.Round(time.Millisecond))
	}
	fmt.Printf("   Product:   %s\n", res.Document.ProductInfo.ProductName)
	fmt.Printf("   JSON:      %s\n", res.JSONPath)
	fmt.Printf("   Markdown:  %s\n", res.MarkdownPath)
	if res.TracePath != "" {
		fmt.Printf("   Log:       %s\n", res.TracePath)
	}
	if res.ArchiveID != "" {
		fmt.Printf("   Archive:   %s\n", res.ArchiveID)
	}

	if !fetchChat {
		return nil
	}

	sess, err := ai.NewChatSession(res.MarkdownPath)
	if err != nil {
		return err
	}
	client := ai.NewLLMClient(cfg.AI, logger)
	fmt.Println()
	return repl.New(client, logger,
		repl.WithSession(sess),
		repl.WithRetriever(svc),
		repl.WithModel(client.Model()),
	).Run(ctx)
}
