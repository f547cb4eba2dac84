package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/okian/gradevec/internal/adapters/sink"
	service "github.com/okian/gradevec/internal/app"
)

func newVerifyCmd(a *app) *cobra.Command {
	var (
		matrixFile string
		students   []string
		tolerance  float64
	)

	cmd := &cobra.Command{
		Use:   "verify [student-id...]",
		Short: "Check a stored matrix against the transcripts",
		Long:  "Recomputes each student's scores from the raw transcripts with the configured formula and reports cells that differ by more than the tolerance, courses missing from the matrix and scores for courses the student never passed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("matrix") {
				a.cfg.OutputFile = matrixFile
			}
			if cmd.Flags().Changed("tolerance") {
				a.cfg.Tolerance = tolerance
			}
			return a.finish(cmd.Context(), a.runVerify(cmd, append(students, args...)))
		},
	}

	cmd.Flags().StringVarP(&matrixFile, "matrix", "m", "", "matrix file to verify (defaults to the configured output file)")
	cmd.Flags().StringSliceVarP(&students, "student", "s", nil, "student id to check; repeatable (default: all)")
	cmd.Flags().Float64Var(&tolerance, "tolerance", 0, "allowed absolute difference per cell")
	return cmd
}

func (a *app) runVerify(cmd *cobra.Command, students []string) error {
	ctx := cmd.Context()
	if a.cfg.OutputFile == "" {
		return ErrNoMatrix
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	m, err := sink.ReadMatrix(a.cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("read matrix: %w", err)
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("read matrix: %w", err)
	}

	svc, err := newService(a.cfg, a.log)
	if err != nil {
		return err
	}
	res, err := svc.Verify(ctx, m, a.cfg.DataDir, a.cfg.FileGlob, students)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	printVerify(cmd.OutOrStdout(), res)
	if !res.Consistent() {
		return fmt.Errorf("%w: %d of %d students", ErrInconsistent, len(res.Summary.Inconsistent())+len(res.NotFound), len(res.Summary.Reports)+len(res.NotFound))
	}
	return nil
}

func printVerify(out io.Writer, res *service.VerifyResult) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer w.Flush()

	for _, r := range res.Summary.Reports {
		status := "OK"
		if !r.Consistent() {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s\t%s\tcourses=%d\n", status, r.StudentID, r.Expected)
		if r.MissingRow && r.Expected > 0 {
			fmt.Fprintf(w, "\t\tmissing row\n")
		}
		if r.NoTranscript {
			fmt.Fprintf(w, "\t\trow without transcript\n")
		}
		for _, mm := range r.Mismatches {
			fmt.Fprintf(w, "\t\tmismatch\t%s\texpected=%s\tactual=%s\n", mm.Course, sink.FormatScore(mm.Expected), sink.FormatScore(mm.Actual))
		}
		for _, c := range r.MissingColumns {
			fmt.Fprintf(w, "\t\tmissing column\t%s\n", c)
		}
		for _, g := range r.Ghosts {
			fmt.Fprintf(w, "\t\tghost\t%s\tactual=%s\n", g.Course, sink.FormatScore(g.Actual))
		}
	}
	for _, id := range res.NotFound {
		fmt.Fprintf(w, "FAIL\t%s\tno readable transcript\n", id)
	}
	for _, s := range res.Skipped {
		fmt.Fprintf(w, "SKIP\t%s\t%v\n", s.StudentID, s.Err)
	}
}
