package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gantryci/gantry/pkg/builder"
	"github.com/gantryci/gantry/pkg/cache"
	"github.com/gantryci/gantry/pkg/cluster"
	"github.com/gantryci/gantry/pkg/config"
	"github.com/gantryci/gantry/pkg/engine"
	"github.com/gantryci/gantry/pkg/events"
	"github.com/gantryci/gantry/pkg/log"
	"github.com/gantryci/gantry/pkg/metrics"
	"github.com/gantryci/gantry/pkg/registry"
	"github.com/gantryci/gantry/pkg/scanner"
	"github.com/gantryci/gantry/pkg/storage"
	"github.com/gantryci/gantry/pkg/types"
)

var (
	configPath string
	revision   string
	platform   string
	dataDir    string
	logLevel   string
	logJSON    bool
)

func init() {
	for _, cmd := range []*cobra.Command{ciCmd, cdCmd} {
		cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to pipeline configuration file")
		cmd.Flags().StringVarP(&revision, "revision", "r", "", "Source revision being built (required)")
		cmd.Flags().StringVar(&platform, "platform", runtime.GOOS+"-"+runtime.GOARCH, "Target platform for cache keying")
		cmd.Flags().StringVar(&dataDir, "data-dir", "", "Override the data directory")
		cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
		cmd.Flags().BoolVar(&logJSON, "log-json", false, "Emit JSON logs instead of console output")
		cmd.MarkFlagRequired("revision")
	}
	runsCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to pipeline configuration file")
	runsCmd.Flags().StringVar(&dataDir, "data-dir", "", "Override the data directory")
}

var ciCmd = &cobra.Command{
	Use:   "ci",
	Short: "Run the CI workflow: build, scan, gate, publish",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(types.WorkflowCI)
	},
}

var cdCmd = &cobra.Command{
	Use:   "cd",
	Short: "Run the CD workflow: provision, deploy, verify, teardown",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(types.WorkflowCD)
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded pipeline runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open run store: %w", err)
		}
		defer store.Close()

		runs, err := store.ListRuns()
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}
		for _, run := range runs {
			fmt.Printf("%s  %-2s  %-8s  %s  %s\n",
				run.ID, run.Workflow, run.Status, run.Revision,
				run.StartedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logJSON {
		cfg.Log.JSON = true
	}
	return cfg, nil
}

func runWorkflow(kind types.WorkflowKind) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log.Init(log.Config{Level: log.Level(cfg.Log.Level), JSONOutput: cfg.Log.JSON})

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	layerCache, err := cache.NewBoltCache(cfg.DataDir, cfg.Cache.Retention.Std())
	if err != nil {
		return fmt.Errorf("failed to open cache store: %w", err)
	}
	defer layerCache.Close()

	runStore, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}
	defer runStore.Close()

	imageBuilder, err := builder.NewDockerBuilder()
	if err != nil {
		return fmt.Errorf("failed to create builder: %w", err)
	}

	publisher, err := registry.NewDockerPublisher()
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	done := make(chan struct{})
	go renderProgress(sub, done)

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				log.Errorf("metrics listener failed", err)
			}
		}()
	}

	eng := engine.New(cfg, engine.Options{
		Cache:     layerCache,
		Builder:   imageBuilder,
		Scanner:   scanner.NewExecScanner(cfg.Scan.Command, cfg.Scan.Gate),
		Publisher: publisher,
		Deployer: cluster.NewDeployer(cluster.Options{
			Provider:     cfg.Cluster.Provider,
			Name:         cfg.Cluster.Name,
			ReadyTimeout: cfg.Cluster.ReadyTimeout.Std(),
			PollInterval: cfg.Cluster.PollInterval.Std(),
		}),
		Runs:   runStore,
		Broker: broker,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run, runErr := eng.Run(ctx, kind, revision, platform)

	// a run that was rejected before starting published no events; waiting
	// on the stream would block forever
	if run != nil {
		<-done
	}
	broker.Unsubscribe(sub)

	if runErr != nil {
		if run != nil {
			return fmt.Errorf("run %s %s: %w", run.ID, run.Status, runErr)
		}
		return runErr
	}

	fmt.Printf("✓ Run %s succeeded\n", run.ID)
	return nil
}

// renderProgress prints one line per pipeline event until the run
// finishes or the subscription is closed
func renderProgress(sub events.Subscriber, done chan<- struct{}) {
	defer close(done)
	for event := range sub {
		switch event.Type {
		case events.EventStepCompleted:
			fmt.Printf("✓ %s\n", event.Step)
		case events.EventStepFailed:
			fmt.Printf("✗ %s: %s\n", event.Step, event.Message)
		case events.EventCacheHit:
			fmt.Printf("  cache hit: %s\n", event.Message)
		case events.EventRunFinished:
			return
		}
	}
}
