package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/romangod6/catscout/config"
	"github.com/romangod6/catscout/internal/api"
	"github.com/romangod6/catscout/internal/blueprint"
	"github.com/romangod6/catscout/internal/browseradapter"
	"github.com/romangod6/catscout/internal/discoverer"
	"github.com/romangod6/catscout/internal/llmadapter"
	"github.com/romangod6/catscout/internal/obslog"
	"github.com/romangod6/catscout/internal/orchestrator"
	"github.com/romangod6/catscout/internal/runregistry"
	"github.com/romangod6/catscout/internal/storage"
)

// exit codes per spec.md §6.
const (
	exitSuccess       = 0
	exitFailure       = 1
	exitInterrupted   = 130
	exitConfiguration = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		retailerID    int
		retailerName  string
		url           string
		headless      bool
		forceRefresh  bool
		blueprintPath string
		blueprintOnly bool
		maxDepth      int
		maxCategories int
	)

	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Discover a retailer's category taxonomy and persist it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintln(os.Stderr, "configuration error:", err)
				os.Exit(exitConfiguration)
			}
			cfg.Browser.Headless = headless

			logger := obslog.New(obslog.Options{
				Level:          cfg.Logging.Level,
				File:           cfg.Logging.File,
				RotationSizeMB: cfg.Logging.RotationSizeMB,
				RetentionDays:  cfg.Logging.RetentionDays,
			})

			llmProvider, err := llmadapter.NewProvider(cfg)
			if err != nil {
				return fmt.Errorf("building llm provider: %w", err)
			}
			llmClient := llmadapter.New(llmProvider, llmadapter.DefaultRetryPolicy(), logger)

			store := storage.NewPostgresStore(cfg.DSN(), storage.DefaultPoolConfig())
			bpEngine := blueprint.New(cfg.Extraction.BlueprintDir)

			limits := discoverer.Limits{
				MaxDepth:         cfg.Extraction.MaxDepth,
				MaxCategories:    cfg.Extraction.MaxCategories,
				ReanalysisBudget: cfg.Extraction.ReanalysisBudget,
				Concurrency:      cfg.Extraction.Concurrency,
			}

			o := orchestrator.New(
				func() (browseradapter.Adapter, error) {
					session, err := browseradapter.Launch(cfg)
					if err != nil {
						return nil, err
					}
					return session, nil
				},
				llmClient,
				store,
				bpEngine,
				limits,
				logger,
			)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			params := orchestrator.Params{
				RetailerID:    retailerID,
				RetailerName:  retailerName,
				RootURL:       url,
				ForceRefresh:  forceRefresh,
				BlueprintPath: blueprintPath,
				BlueprintOnly: blueprintOnly,
			}
			if cmd.Flags().Changed("max-depth") {
				params.MaxDepth = &maxDepth
			}
			if cmd.Flags().Changed("max-categories") {
				params.MaxCategories = &maxCategories
			}

			result := o.Run(ctx, params)
			if result.Success {
				logger.Info("extract finished", "total_categories", result.State.TotalCategories())
				return nil
			}
			if ctx.Err() != nil {
				os.Exit(exitInterrupted)
			}
			return result.Error
		},
	}

	extractCmd.Flags().IntVar(&retailerID, "retailer-id", 0, "retailer identifier to attribute discovered categories to")
	extractCmd.Flags().StringVar(&retailerName, "retailer-name", "", "retailer display name recorded in the blueprint")
	extractCmd.Flags().StringVar(&url, "url", "", "root category/navigation URL to start discovery from")
	extractCmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	extractCmd.Flags().BoolVar(&forceRefresh, "force-refresh", false, "ignore any existing blueprint and re-analyze from scratch")
	extractCmd.Flags().StringVar(&blueprintPath, "blueprint", "", "replay a specific blueprint file instead of looking up the latest")
	extractCmd.Flags().BoolVar(&blueprintOnly, "blueprint-only", false, "generate a strategy and blueprint without persisting discovered categories")
	extractCmd.Flags().IntVar(&maxDepth, "max-depth", 0, "override the configured max traversal depth")
	extractCmd.Flags().IntVar(&maxCategories, "max-categories", 0, "override the configured max category count")
	_ = extractCmd.MarkFlagRequired("retailer-id")
	_ = extractCmd.MarkFlagRequired("url")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only categories/run-status inspection API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintln(os.Stderr, "configuration error:", err)
				os.Exit(exitConfiguration)
			}

			logger := obslog.New(obslog.Options{
				Level:          cfg.Logging.Level,
				File:           cfg.Logging.File,
				RotationSizeMB: cfg.Logging.RotationSizeMB,
				RetentionDays:  cfg.Logging.RetentionDays,
			})

			store := storage.NewPostgresStore(cfg.DSN(), storage.DefaultPoolConfig())
			if err := store.Connect(context.Background()); err != nil {
				return fmt.Errorf("connecting to store: %w", err)
			}
			defer store.Close()

			registry := runregistry.New(100)
			server := api.NewServer(cfg.Server.Port, store, registry)

			logger.Info("api server starting", "port", cfg.Server.Port)
			return server.Start()
		},
	}

	var verifyRetailerID int
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Cheaply re-check a retailer's latest blueprint against the live site without a browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintln(os.Stderr, "configuration error:", err)
				os.Exit(exitConfiguration)
			}

			bpEngine := blueprint.New(cfg.Extraction.BlueprintDir)
			_, bp, err := bpEngine.LatestFor(verifyRetailerID)
			if err != nil {
				return fmt.Errorf("loading latest blueprint: %w", err)
			}
			if bp == nil {
				fmt.Fprintln(os.Stderr, "no blueprint found for retailer", verifyRetailerID)
				os.Exit(exitFailure)
			}

			if !blueprint.CanReplay(bp.ExtractionStrategy.NavigationType) {
				fmt.Printf("navigation_type %q requires a full extract run to verify\n", bp.ExtractionStrategy.NavigationType)
				return nil
			}

			replayer := blueprint.NewReplayer("", 0)
			result, err := replayer.Verify(bp)
			if err != nil {
				return fmt.Errorf("replay verify failed: %w", err)
			}

			fmt.Printf("links seen: %d, expected: %d, within tolerance: %v\n", result.LinksSeen, result.ExpectedLinks, result.WithinTolerance)
			if !result.WithinTolerance {
				os.Exit(exitFailure)
			}
			return nil
		},
	}
	verifyCmd.Flags().IntVar(&verifyRetailerID, "retailer-id", 0, "retailer whose latest blueprint should be re-checked")
	_ = verifyCmd.MarkFlagRequired("retailer-id")

	root := &cobra.Command{Use: "catscout"}
	root.AddCommand(extractCmd, serveCmd, verifyCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitFailure
	}
	return exitSuccess
}
