// Package cmd provides the CLI commands for websearch.
package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"websearch/internal/logging"
	"websearch/internal/profiling"
	"websearch/pkg/version"
)

// Persistent flags shared by every subcommand.
var (
	flagDataDir   string
	flagNamespace string
	flagOffline   bool
	debugMode     bool

	profileCPU   string
	profileMem   string
	profileTrace string

	profiler       = profiling.NewProfiler()
	cpuCleanup     func()
	traceCleanup   func()
	loggingCleanup func()
)

// NewRootCmd creates the root command for the websearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "websearch",
		Short: "Local web research appliance",
		Long: `websearch fetches, searches, chunks and semantically caches web content.

It combines a web search facade, a static/dynamic page fetcher, text
chunking and a local vector cache behind one CLI and one HTTP API.

Results are printed as JSON on stdout; diagnostics go to stderr.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("websearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Data directory (default ~/.websearch)")
	cmd.PersistentFlags().StringVar(&flagNamespace, "namespace", "", "Vector cache namespace")
	cmd.PersistentFlags().BoolVar(&flagOffline, "offline", false, "Use static embeddings (skip Ollama)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startRun
	cmd.PersistentPostRunE = stopRun

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newChunkCmd())
	cmd.AddCommand(newCacheCmd())
	cmd.AddCommand(newSitemapCmd())
	cmd.AddCommand(newMapCmd())
	cmd.AddCommand(newBatchCrawlCmd())
	cmd.AddCommand(newJobsCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newResetCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startRun starts profiling and logging before any subcommand runs.
func startRun(_ *cobra.Command, _ []string) error {
	if profileCPU != "" {
		cleanup, err := profiler.StartCPU(profileCPU)
		if err != nil {
			return err
		}
		cpuCleanup = cleanup
	}
	if profileTrace != "" {
		cleanup, err := profiler.StartTrace(profileTrace)
		if err != nil {
			return err
		}
		traceCleanup = cleanup
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logCfg := logging.DefaultConfig(cfg.DataDir)
	logCfg.WriteToStderr = debugMode
	if debugMode {
		logCfg.Level = "debug"
	}
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		// Logging setup failure must never block the command itself.
		slog.SetDefault(logger)
		loggingCleanup = cleanup
	}
	return nil
}

// stopRun flushes profiles and logs after the subcommand finishes.
func stopRun(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}
	var err error
	if profileMem != "" {
		err = profiler.WriteHeap(profileMem)
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}
