package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/okian/gradevec/internal/adapters/sink"
	"github.com/okian/gradevec/pkg/logger"
)

func newBuildCmd(a *app) *cobra.Command {
	var (
		out     string
		formula string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the student × course feature matrix",
		Long:  "Reads every transcript in the data directory, scores each course by best grade, attempts and credit, and writes the matrix as CSV or XLSX depending on the output extension.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("out") {
				a.cfg.OutputFile = out
			}
			if cmd.Flags().Changed("formula") {
				a.cfg.Formula = formula
			}
			return a.finish(cmd.Context(), a.runBuild(cmd))
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (.csv or .xlsx)")
	cmd.Flags().StringVar(&formula, "formula", "", "scoring formula: weighted or best")
	return cmd
}

func (a *app) runBuild(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	svc, err := newService(a.cfg, a.log)
	if err != nil {
		return err
	}

	res, err := svc.Build(ctx, a.cfg.DataDir, a.cfg.FileGlob)
	if err != nil {
		return fmt.Errorf("build matrix: %w", err)
	}

	if dir := filepath.Dir(a.cfg.OutputFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := sink.WriteMatrix(a.cfg.OutputFile, res.Matrix); err != nil {
		return fmt.Errorf("write matrix: %w", err)
	}

	rows, cols := res.Matrix.Shape()
	a.log.Info(ctx, "matrix written",
		logger.String("run_id", res.RunID.String()),
		logger.String("file", a.cfg.OutputFile),
	)

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Matrix shape: %d students x %d courses\n", rows, cols)
	fmt.Fprintf(w, "Students loaded: %d, skipped: %d, duplicate files: %d\n", res.Students, len(res.Skipped), len(res.Duplicates))
	fmt.Fprintf(w, "Rows read: %d, graded: %d, exempt: %d, without grade: %d, without course: %d, exempt-only courses: %d\n",
		res.Records.Rows, res.Records.Numeric, res.Records.Exempt, res.Records.NoValue, res.Records.NoCourse, res.Records.ExemptOnly)
	for _, s := range res.Skipped {
		fmt.Fprintf(w, "  skipped %s: %v\n", s.StudentID, s.Err)
	}
	fmt.Fprintf(w, "Saved: %s\n", a.cfg.OutputFile)
	return nil
}
