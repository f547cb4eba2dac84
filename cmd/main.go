// Package main is the gradevec command: it builds per-student course
// feature matrices from transcript workbooks and verifies stored matrices.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/okian/gradevec/internal/config"
	"github.com/okian/gradevec/pkg/logger"
	"github.com/okian/gradevec/pkg/metrics"
)

// Exit codes.
const (
	exitOK           = 0
	exitError        = 1
	exitInconsistent = 2
)

// shutdownTimeout bounds how long an interrupted build waits for workers.
const shutdownTimeout = 30 * time.Second

// app carries state shared by subcommands once the root pre-run has
// loaded configuration.
type app struct {
	cfg *config.Config
	log logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "gradevec",
		Short:         "Build course feature vectors from student transcripts",
		Long:          "gradevec turns one transcript workbook per student into a student × course matrix of weighted grade scores and verifies stored matrices against the transcripts.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")
	flags.String("data-dir", "", "directory holding one transcript file per student")
	flags.String("glob", "", "pattern selecting transcript files inside the data directory")
	flags.String("sheet", "", "workbook sheet holding the transcript (default: first sheet)")
	flags.Int("workers", 0, "number of scoring workers")
	flags.String("metrics-file", "", "write run metrics in Prometheus text format to this file")

	root.AddCommand(newBuildCmd(a), newVerifyCmd(a), newConvertCmd(a))
	return root
}

// setup loads configuration, applies flag overrides and initializes logging.
func (a *app) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	for name, dst := range map[string]*string{
		"log-level":    &cfg.LogLevel,
		"log-format":   &cfg.LogFormat,
		"data-dir":     &cfg.DataDir,
		"glob":         &cfg.FileGlob,
		"sheet":        &cfg.Sheet,
		"metrics-file": &cfg.MetricsFile,
	} {
		if flags.Changed(name) {
			if *dst, err = flags.GetString(name); err != nil {
				return err
			}
		}
	}
	if flags.Changed("workers") {
		if cfg.WorkerCount, err = flags.GetInt("workers"); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(logger.WithWriter(cmd.ErrOrStderr()), logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return err
	}

	a.cfg = cfg
	a.log = logger.Get()
	return nil
}

// finish writes the metrics textfile, if configured, and returns the
// command's own error first.
func (a *app) finish(ctx context.Context, runErr error) error {
	if a.cfg.MetricsFile == "" {
		return runErr
	}
	if err := metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		a.log.Error(ctx, "writing metrics failed", logger.Error(err))
		if runErr == nil {
			return err
		}
	}
	return runErr
}

// run executes the command tree and maps errors to exit codes.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, ErrInconsistent):
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		return exitInconsistent
	default:
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		return exitError
	}
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
