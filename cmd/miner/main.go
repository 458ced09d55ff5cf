package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/the-lean-crate/miner/pkg/engine"
	"github.com/the-lean-crate/miner/pkg/log"
	"github.com/the-lean-crate/miner/pkg/metrics"
	"github.com/the-lean-crate/miner/pkg/model"
	"github.com/the-lean-crate/miner/pkg/report"
	"github.com/the-lean-crate/miner/pkg/scheduler"
	"github.com/the-lean-crate/miner/pkg/storage"
	"github.com/the-lean-crate/miner/pkg/worker"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "miner",
	Short:   "miner mines a crates.io-shaped package registry for packaging waste",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("miner version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(mineCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOutput})
}

var mineCmd = &cobra.Command{
	Use:   "mine DB_PATH",
	Short: "Run the miner against a local registry clone",
	Long: `mine drives the three periodic loops that fetch index changes,
schedule downloads and extractions, and merge waste reports, persisting all
state in a bbolt database at DB_PATH.`,
	Args: cobra.ExactArgs(1),
	RunE: runMine,
}

func init() {
	mineCmd.Flags().String("index-path", "", "Path to a local clone of the registry index (required)")
	mineCmd.Flags().Int("downloaders", 4, "Number of concurrent download workers")
	mineCmd.Flags().Int("extractors", 4, "Number of concurrent extraction workers")
	mineCmd.Flags().Duration("time-limit", 0, "Stop all loops after this much wall-clock time has elapsed (0 means run until interrupted)")
	mineCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address to serve Prometheus metrics on (empty disables the server)")
	mineCmd.Flags().Bool("disable-tui", false, "Accepted for CLI-surface compatibility; the miner never renders a TUI")
	mineCmd.Flags().Int("progress-buffer", 0, "Accepted for CLI-surface compatibility; the miner has no progress buffer to size")
	mineCmd.MarkFlagRequired("index-path")
}

// localIndex is a stub engine.IndexDiff: opening or cloning the registry
// index's working copy, and diffing it against the last-seen commit, are
// both out of scope, so FetchChanges always reports no changes. A real
// deployment injects a git-backed IndexDiff in its place.
type localIndex struct {
	path string
}

func newIndexDiff(path string) *localIndex {
	return &localIndex{path: path}
}

func (l *localIndex) FetchChanges(ctx context.Context) ([]model.PackageVersion, error) {
	return nil, nil
}

func runMine(cmd *cobra.Command, args []string) error {
	dbPath := args[0]
	indexPath, _ := cmd.Flags().GetString("index-path")
	numDownloaders, _ := cmd.Flags().GetInt("downloaders")
	numExtractors, _ := cmd.Flags().GetInt("extractors")
	timeLimit, _ := cmd.Flags().GetDuration("time-limit")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	logger := log.WithComponent("cmd")
	logger.Info().Str("db_path", dbPath).Str("index_path", indexPath).Msg("starting miner")

	store, err := storage.NewBoltStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	assetsDir := filepath.Join(dbPath, "assets")
	if err := os.MkdirAll(assetsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create assets directory: %w", err)
	}

	// Single-slot channels: a full channel means the worker pool is saturated,
	// so the scheduler naturally backpressures instead of queuing unboundedly.
	downloads := make(chan scheduler.DownloadRequest, 1)
	extracts := make(chan scheduler.ExtractRequest, 1)

	sched := scheduler.New(store, downloads, extracts)

	reportDir := filepath.Join(assetsDir, "reports")
	aggregator, err := report.NewAggregator(reportDir, nil)
	if err != nil {
		return fmt.Errorf("failed to open report aggregator: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < numDownloaders; i++ {
		d := worker.NewDownloader(assetsDir, store)
		go d.Run(ctx, downloads)
	}
	for i := 0; i < numExtractors; i++ {
		e := worker.NewExtractor(assetsDir, store)
		go e.Run(ctx, extracts)
	}

	collector := metrics.NewCollector(store)
	collector.Start()
	defer collector.Stop()

	metrics.SetVersion(Version)
	metrics.RegisterComponent("storage", true, "open")
	metrics.RegisterComponent("engine", false, "starting")

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server error")
			}
		}()
		defer srv.Close()
		logger.Info().Str("addr", metricsAddr).Msg("metrics endpoint listening")
	}

	cfg := engine.DefaultConfig()
	if timeLimit > 0 {
		cfg.Deadline = time.Now().Add(timeLimit)
	}

	eng := engine.New(cfg, store, sched, aggregator, newIndexDiff(indexPath), nil)
	eng.Start()
	metrics.RegisterComponent("engine", true, "running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	if timeLimit > 0 {
		select {
		case <-sigCh:
			logger.Info().Msg("received interrupt, shutting down")
		case <-time.After(timeLimit):
			logger.Info().Msg("time limit reached, shutting down")
		}
	} else {
		<-sigCh
		logger.Info().Msg("received interrupt, shutting down")
	}

	cancel()
	eng.Stop()

	collection := aggregator.Collection()
	green := color.New(color.FgGreen, color.Bold)
	green.Println("✓ Miner shutdown complete")
	fmt.Printf("  Packages seen:  %d\n", collection.PackagesSeen)
	fmt.Printf("  Versions seen:  %d\n", collection.VersionsSeen)

	return nil
}
