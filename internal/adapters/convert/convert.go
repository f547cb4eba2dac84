// Package convert rewrites transcript workbooks as UTF-8 CSV files that
// spreadsheet tools open without mangling Turkish characters.
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/okian/gradevec/internal/adapters/table"
	"github.com/okian/gradevec/pkg/logger"
)

// Failure names a workbook that could not be converted.
type Failure struct {
	Path string
	Err  error
}

// Result summarizes a conversion run.
type Result struct {
	Converted []string // written CSV paths
	Failed    []Failure
}

// Converter turns every matching workbook of a directory into CSV.
type Converter struct {
	prefix string
	log    logger.Logger
}

// Option applies a configuration option to the Converter.
type Option func(*Converter)

// WithPrefix only converts workbooks whose name starts with prefix.
func WithPrefix(prefix string) Option {
	return func(c *Converter) {
		c.prefix = norm.NFC.String(prefix)
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Converter) {
		c.log = log
	}
}

// New creates a Converter.
func New(opts ...Option) *Converter {
	c := &Converter{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir converts the workbooks in inDir into outDir, creating it if needed.
// A failing workbook is recorded and the run continues. An error is only
// returned when the directories themselves are unusable or no workbook
// matches.
func (c *Converter) Dir(ctx context.Context, inDir, outDir string) (Result, error) {
	var res Result

	workbooks, err := c.match(inDir)
	if err != nil {
		return res, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return res, fmt.Errorf("create output dir: %w", err)
	}

	for _, path := range workbooks {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		base := filepath.Base(path)
		out := filepath.Join(outDir, strings.TrimSuffix(base, filepath.Ext(base))+".csv")
		if err := File(path, out); err != nil {
			res.Failed = append(res.Failed, Failure{Path: path, Err: err})
			if c.log != nil {
				c.log.Warn(ctx, "workbook conversion failed",
					logger.String("file", base),
					logger.Error(err))
			}
			continue
		}
		res.Converted = append(res.Converted, out)
		if c.log != nil {
			c.log.Info(ctx, "workbook converted",
				logger.String("file", base),
				logger.String("output", filepath.Base(out)))
		}
	}

	return res, nil
}

// File converts a single workbook's first sheet into a CSV with a byte
// order mark.
func File(in, out string) error {
	rows, err := table.ReadXLSX(in, "")
	if err != nil {
		return err
	}
	return table.WriteCSVFile(out, rows, true)
}

func (c *Converter) match(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}

	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := norm.NFC.String(e.Name())
		if !strings.EqualFold(filepath.Ext(name), ".xlsx") || strings.HasPrefix(name, "~$") {
			continue
		}
		if !strings.HasPrefix(name, c.prefix) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s with prefix %q", ErrNoWorkbooks, dir, c.prefix)
	}

	sort.Strings(out)
	return out, nil
}
