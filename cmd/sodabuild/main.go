package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soda-gql/sodabuild"
	"github.com/soda-gql/sodabuild/internal/config"
)

var (
	flagRoot    string
	flagConfig  string
	flagVerbose bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "sodabuild",
	Short:         "Incremental discovery and compilation of embedded GraphQL definitions",
	Long:          "Sodabuild scans TypeScript and JavaScript sources for declarative GraphQL definitions, tracks file changes between runs, and incrementally compiles definitions into evaluated artifacts.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
	// No Run; prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", ".", "project root directory")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path (default: <root>/sodabuild.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(cleanCmd)
}

var (
	flagForce bool
	flagJSON  bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run one incremental build",
	Args:  cobra.NoArgs,
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&flagForce, "force", false, "discard incremental state and re-analyze everything")
	buildCmd.Flags().BoolVar(&flagJSON, "json", false, "print the build report as JSON")
}

func runBuild(cmd *cobra.Command, args []string) error {
	builder, err := newBuilder()
	if err != nil {
		return err
	}
	defer builder.Close()

	report, err := builder.Build(cmd.Context(), sodabuild.BuildOptions{Force: flagForce})
	if err != nil {
		return err
	}
	return printReport(report)
}

func printReport(report *sodabuild.Report) error {
	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	for _, w := range report.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
	fmt.Fprintf(os.Stderr, "Built %d definition(s) from %d file(s) in %s (analyzed: %d, cache hits: %d, misses: %d)\n",
		report.Definitions,
		report.FilesScanned,
		report.Duration.Round(time.Millisecond),
		report.FilesAnalyzed,
		report.Cache.Hits,
		report.Cache.Misses,
	)
	return nil
}

var flagDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild continuously as source files change",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&flagJSON, "json", false, "print build reports as JSON")
	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", 250*time.Millisecond, "delay after the last change before rebuilding")
}

func runWatch(cmd *cobra.Command, args []string) error {
	builder, err := newBuilder()
	if err != nil {
		return err
	}
	defer builder.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = builder.Watch(ctx, sodabuild.WatchOptions{
		Debounce: flagDebounce,
		OnBuild: func(report *sodabuild.Report, err error) {
			if err != nil {
				fmt.Fprintf(os.Stderr, "Build failed: %s\n", err)
				return
			}
			if perr := printReport(report); perr != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", perr)
			}
		},
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete the cache directory (tracker state and persisted graph)",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func runClean(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(flagRoot)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = config.DefaultCacheDir
	}
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(root, cacheDir)
	}
	if err := os.RemoveAll(cacheDir); err != nil {
		return fmt.Errorf("removing %s: %w", cacheDir, err)
	}
	fmt.Fprintf(os.Stderr, "Removed %s\n", cacheDir)
	return nil
}

func newBuilder() (*sodabuild.Builder, error) {
	root, err := filepath.Abs(flagRoot)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}
	return sodabuild.New(root, sodabuild.WithConfig(cfg))
}

func loadConfig(root string) (*config.Config, error) {
	path := flagConfig
	if path == "" {
		path = filepath.Join(root, config.DefaultFileName)
	}
	return config.Load(path)
}
