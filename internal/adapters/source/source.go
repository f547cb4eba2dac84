// Package source discovers student transcript files and decodes them into
// raw records.
package source

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/okian/gradevec/internal/adapters/table"
	"github.com/okian/gradevec/internal/domain/model"
)

// Column headers of a transcript table.
const (
	ColumnCourse = "Ders Kodu"
	ColumnGrade  = "Harf Notu"
	ColumnCredit = "Kredi"
)

// DefaultGlob matches the files a run picks up when none is configured.
const DefaultGlob = "*.xlsx"

// lockPrefix marks spreadsheet lock files left next to open workbooks.
const lockPrefix = "~$"

// Discover returns the files in dir matching glob, sorted by path.
func Discover(dir, glob string) ([]string, error) {
	if glob == "" {
		glob = DefaultGlob
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoInputFiles, err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, glob))
	if err != nil {
		return nil, fmt.Errorf("bad glob %q: %w", glob, err)
	}

	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		if strings.HasPrefix(filepath.Base(m), lockPrefix) {
			continue
		}
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		paths = append(paths, m)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s matching %q", ErrNoInputFiles, dir, glob)
	}

	sort.Strings(paths)
	return paths, nil
}

// StudentID derives the student id from a file name: the base name without
// its extension, NFC-normalized.
func StudentID(path string) string {
	base := filepath.Base(path)
	return norm.NFC.String(strings.TrimSuffix(base, filepath.Ext(base)))
}

// FileLoader reads transcripts from CSV or XLSX files.
type FileLoader struct {
	sheet string
}

// Option applies a configuration option to the FileLoader.
type Option func(*FileLoader)

// WithSheet reads the named sheet of XLSX files instead of the first one.
func WithSheet(name string) Option {
	return func(l *FileLoader) {
		l.sheet = name
	}
}

// NewFileLoader creates a FileLoader.
func NewFileLoader(opts ...Option) *FileLoader {
	l := &FileLoader{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the transcript stored at path. Every failure that should drop
// the student wraps ErrStudentSkipped.
func (l *FileLoader) Load(ctx context.Context, path string) (model.Transcript, error) {
	t := model.Transcript{StudentID: StudentID(path), Source: path}
	if err := ctx.Err(); err != nil {
		return t, err
	}

	rows, err := l.read(path)
	if err != nil {
		return t, fmt.Errorf("%w: %s: %w: %w", ErrStudentSkipped, t.StudentID, ErrUnreadableSource, err)
	}

	records, err := Records(rows)
	if err != nil {
		return t, fmt.Errorf("%w: %s: %w", ErrStudentSkipped, t.StudentID, err)
	}
	t.Records = records
	return t, nil
}

func (l *FileLoader) read(path string) ([][]string, error) {
	format, err := table.FormatOf(path)
	if err != nil {
		return nil, err
	}
	if format == table.FormatXLSX {
		return table.ReadXLSX(path, l.sheet)
	}
	return table.Read(path)
}

// Records decodes table rows into raw records. The first row is the header;
// "Ders Kodu" and "Harf Notu" are required, "Kredi" is optional. Blank rows
// are skipped.
func Records(rows [][]string) ([]model.RawRecord, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty table", ErrMissingColumns)
	}

	courseCol, gradeCol, creditCol := -1, -1, -1
	for i, h := range rows[0] {
		switch canonical(h) {
		case ColumnCourse:
			if courseCol < 0 {
				courseCol = i
			}
		case ColumnGrade:
			if gradeCol < 0 {
				gradeCol = i
			}
		case ColumnCredit:
			if creditCol < 0 {
				creditCol = i
			}
		}
	}

	var missing []string
	if courseCol < 0 {
		missing = append(missing, ColumnCourse)
	}
	if gradeCol < 0 {
		missing = append(missing, ColumnGrade)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	records := make([]model.RawRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		rec := model.RawRecord{CourseCode: cell(row, courseCol)}
		if g := cell(row, gradeCol); strings.TrimSpace(g) != "" {
			rec.LetterGrade = &g
		}
		if creditCol >= 0 {
			rec.Credit = ParseCredit(cell(row, creditCol))
		}
		records = append(records, rec)
	}
	return records, nil
}

// ParseCredit reads a credit cell, accepting a decimal comma. Anything that
// is not a finite number yields 0.
func ParseCredit(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func canonical(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
