// Package sink persists the feature matrix as a CSV or XLSX table and reads
// it back for verification.
package sink

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/gradevec/internal/adapters/table"
	"github.com/okian/gradevec/internal/domain/matrix"
)

// IndexHeader labels the student id column.
const IndexHeader = "Student_ID"

// SheetName is the sheet the matrix is written to in XLSX output.
const SheetName = "Features"

// WriteMatrix stores m at path. The format follows the file extension.
func WriteMatrix(path string, m *matrix.FeatureMatrix) error {
	format, err := table.FormatOf(path)
	if err != nil {
		return err
	}

	students, courses := m.Students(), m.Courses()
	if format == table.FormatXLSX {
		rows := make([][]any, 0, len(students)+1)
		header := make([]any, 0, len(courses)+1)
		header = append(header, IndexHeader)
		for _, c := range courses {
			header = append(header, c)
		}
		rows = append(rows, header)
		for i, s := range students {
			row := make([]any, 0, len(courses)+1)
			row = append(row, s)
			for j := range courses {
				row = append(row, m.At(i, j))
			}
			rows = append(rows, row)
		}
		return table.WriteXLSX(path, SheetName, rows)
	}

	rows := make([][]string, 0, len(students)+1)
	rows = append(rows, append([]string{IndexHeader}, courses...))
	for i, s := range students {
		row := make([]string, 0, len(courses)+1)
		row = append(row, s)
		for j := range courses {
			row = append(row, FormatScore(m.At(i, j)))
		}
		rows = append(rows, row)
	}
	return table.WriteCSVFile(path, rows, false)
}

// ReadMatrix loads a matrix previously written by WriteMatrix.
func ReadMatrix(path string) (*matrix.FeatureMatrix, error) {
	rows, err := table.Read(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 || strings.TrimSpace(rows[0][0]) != IndexHeader {
		return nil, fmt.Errorf("%w: %s: first column must be %q", ErrBadHeader, path, IndexHeader)
	}

	courses := rows[0][1:]
	students := make([]string, 0, len(rows)-1)
	cells := make([][]float64, 0, len(rows)-1)
	for r, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		values := make([]float64, len(courses))
		for j := range courses {
			raw := ""
			if j+1 < len(row) {
				raw = strings.TrimSpace(row[j+1])
			}
			if raw == "" {
				values[j] = matrix.Sentinel
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s row %d column %q: %w", ErrBadCell, path, r+2, courses[j], err)
			}
			values[j] = v
		}
		students = append(students, row[0])
		cells = append(cells, values)
	}

	return matrix.New(students, courses, cells)
}

// FormatScore renders a cell with the shortest representation that reads
// back to the same float64.
func FormatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
