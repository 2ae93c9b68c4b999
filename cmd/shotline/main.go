// Command shotline executes production-task lifecycle transitions against
// the record store, driven by an action-invocation URL.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkawato/shotline/internal/config"
	"github.com/mkawato/shotline/internal/pathtmpl"
	"github.com/mkawato/shotline/internal/report"
	"github.com/mkawato/shotline/internal/runlock"
	"github.com/mkawato/shotline/internal/store"
	"github.com/mkawato/shotline/internal/transfer"
	"github.com/mkawato/shotline/internal/transition"
	"github.com/mkawato/shotline/internal/trigger"
)

const version = "1.0.0"

var (
	configPath string
	verbose    bool
	dryRun     bool
)

func main() {
	root := &cobra.Command{
		Use:           "shotline",
		Short:         "Task lifecycle transitions for the production pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "shotline.yaml", "configuration file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run <invocation-url>",
		Short: "Process one transition invocation",
		Args:  cobra.ExactArgs(1),
		RunE:  runTransition,
	}
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "resolve and authorize without touching the store or filesystem")

	root.AddCommand(runCmd, &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "shotline %s\n", version)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runTransition(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	trig, err := trigger.Parse(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// One run per workstation: overlapping runs would interleave copies.
	lock := runlock.New(filepath.Join(os.TempDir(), "shotline.lock"))
	if err := lock.TryAcquire(); err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("run lock not released", "error", err)
		}
	}()

	var st store.Store = store.NewHTTPStore(store.HTTPConfig{
		BaseURL:         cfg.Store.BaseURL,
		ScriptName:      cfg.Store.ScriptName,
		APIKey:          cfg.Store.APIKey,
		Timeout:         cfg.Store.Timeout(),
		RetryMaxElapsed: cfg.Store.RetryMaxElapsed(),
	}, logger)
	if dryRun {
		st = store.NewMemory()
	}

	paths := &pathtmpl.Expander{
		WorkRoot:    cfg.Paths.WorkRoot,
		PublishRoot: cfg.Paths.PublishRoot,
	}
	engine := transition.NewEngine(st, cfg, paths, transfer.New(logger), logger)

	result, runErr := engine.Run(cmd.Context(), trig)

	fmt.Fprintln(cmd.OutOrStdout(), report.Render(result))
	if cfg.Paths.LogFolder != "" {
		if path, err := report.WriteLog(cfg.Paths.LogFolder, trig.User.Login, time.Now(), result); err != nil {
			logger.Warn("run log not written", "error", err)
		} else {
			logger.Info("run log written", "path", path)
		}
	}
	return runErr
}
