package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/gradevec/internal/adapters/convert"
)

func newConvertCmd(a *app) *cobra.Command {
	var (
		outDir string
		prefix string
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert transcript workbooks to UTF-8 CSV",
		Long:  "Writes the first sheet of every .xlsx workbook in the data directory whose name starts with the prefix as a CSV file with a byte order mark.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("out-dir") {
				a.cfg.ConvertOutDir = outDir
			}
			if cmd.Flags().Changed("prefix") {
				a.cfg.ConvertPrefix = prefix
			}
			return a.finish(cmd.Context(), a.runConvert(cmd))
		},
	}

	cmd.Flags().StringVar(&outDir, "out-dir", "", "directory receiving the CSV files")
	cmd.Flags().StringVar(&prefix, "prefix", "", "only convert workbooks whose name starts with this prefix")
	return cmd
}

func (a *app) runConvert(cmd *cobra.Command) error {
	c := convert.New(
		convert.WithPrefix(a.cfg.ConvertPrefix),
		convert.WithLogger(a.log.Named("convert")),
	)
	res, err := c.Dir(cmd.Context(), a.cfg.DataDir, a.cfg.ConvertOutDir)
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}

	w := cmd.OutOrStdout()
	for _, f := range res.Failed {
		fmt.Fprintf(w, "failed %s: %v\n", f.Path, f.Err)
	}
	fmt.Fprintf(w, "Finished. Success: %d, Failed: %d\n", len(res.Converted), len(res.Failed))
	fmt.Fprintf(w, "Output directory: %s\n", a.cfg.ConvertOutDir)
	return nil
}
