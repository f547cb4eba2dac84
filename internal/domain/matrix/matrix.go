// Package matrix pivots scored entries into the dense student × course
// feature matrix.
package matrix

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/gradevec/internal/domain/model"
)

// Sentinel marks a course the student has no valid score for. The weighting
// formula never yields a negative value, so the sentinel is unambiguous.
const Sentinel = -1.0

// FeatureMatrix is an immutable dense matrix. Rows are students and columns
// are normalized course codes, both sorted in ascending code-point order.
type FeatureMatrix struct {
	students  []string
	courses   []string
	cells     [][]float64
	rowIdx    map[string]int
	columnIdx map[string]int
}

// Assemble builds the matrix from every scored entry of a run. Input order
// does not matter. If an entry for the same pair appears twice, the higher
// score wins.
func Assemble(entries []model.ScoredEntry) *FeatureMatrix {
	studentSet := make(map[string]struct{})
	courseSet := make(map[string]struct{})
	for _, e := range entries {
		studentSet[e.StudentID] = struct{}{}
		courseSet[e.Course] = struct{}{}
	}

	m := newEmpty(sortedKeys(studentSet), sortedKeys(courseSet))
	for _, e := range entries {
		i, j := m.rowIdx[e.StudentID], m.columnIdx[e.Course]
		if cur := m.cells[i][j]; cur == Sentinel || e.Score > cur {
			m.cells[i][j] = e.Score
		}
	}
	return m
}

// New builds a matrix from explicit labels and cells, as read back from a
// stored table. Labels are kept in the given order; they must be unique and
// every row must have one value per course.
func New(students, courses []string, cells [][]float64) (*FeatureMatrix, error) {
	if len(cells) != len(students) {
		return nil, fmt.Errorf("%w: %d rows for %d students", ErrShape, len(cells), len(students))
	}
	m := &FeatureMatrix{
		students:  append([]string(nil), students...),
		courses:   append([]string(nil), courses...),
		cells:     make([][]float64, len(students)),
		rowIdx:    make(map[string]int, len(students)),
		columnIdx: make(map[string]int, len(courses)),
	}
	for i, s := range students {
		if _, dup := m.rowIdx[s]; dup {
			return nil, fmt.Errorf("%w: student %q", ErrDuplicateLabel, s)
		}
		m.rowIdx[s] = i
		if len(cells[i]) != len(courses) {
			return nil, fmt.Errorf("%w: row %q has %d cells for %d courses", ErrShape, s, len(cells[i]), len(courses))
		}
		m.cells[i] = append([]float64(nil), cells[i]...)
	}
	for j, c := range courses {
		if _, dup := m.columnIdx[c]; dup {
			return nil, fmt.Errorf("%w: course %q", ErrDuplicateLabel, c)
		}
		m.columnIdx[c] = j
	}
	return m, nil
}

func newEmpty(students, courses []string) *FeatureMatrix {
	m := &FeatureMatrix{
		students:  students,
		courses:   courses,
		cells:     make([][]float64, len(students)),
		rowIdx:    make(map[string]int, len(students)),
		columnIdx: make(map[string]int, len(courses)),
	}
	for i, s := range students {
		m.rowIdx[s] = i
		row := make([]float64, len(courses))
		for j := range row {
			row[j] = Sentinel
		}
		m.cells[i] = row
	}
	for j, c := range courses {
		m.columnIdx[c] = j
	}
	return m
}

// Students returns the row labels.
func (m *FeatureMatrix) Students() []string { return append([]string(nil), m.students...) }

// Courses returns the column labels.
func (m *FeatureMatrix) Courses() []string { return append([]string(nil), m.courses...) }

// Shape returns the row and column counts.
func (m *FeatureMatrix) Shape() (rows, columns int) { return len(m.students), len(m.courses) }

// HasStudent reports whether student has a row.
func (m *FeatureMatrix) HasStudent(student string) bool {
	_, ok := m.rowIdx[student]
	return ok
}

// HasCourse reports whether course has a column.
func (m *FeatureMatrix) HasCourse(course string) bool {
	_, ok := m.columnIdx[course]
	return ok
}

// Value returns the cell for (student, course). ok is false when either
// label is unknown.
func (m *FeatureMatrix) Value(student, course string) (value float64, ok bool) {
	i, ok := m.rowIdx[student]
	if !ok {
		return 0, false
	}
	j, ok := m.columnIdx[course]
	if !ok {
		return 0, false
	}
	return m.cells[i][j], true
}

// Row returns a copy of a student's row in column order.
func (m *FeatureMatrix) Row(student string) ([]float64, bool) {
	i, ok := m.rowIdx[student]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), m.cells[i]...), true
}

// At returns the cell at row i, column j.
func (m *FeatureMatrix) At(i, j int) float64 { return m.cells[i][j] }

// Validate checks that every cell is the sentinel or a finite non-negative
// number and that labels are strictly ascending.
func (m *FeatureMatrix) Validate() error {
	if !strictlyAscending(m.students) {
		return fmt.Errorf("%w: students", ErrUnsorted)
	}
	if !strictlyAscending(m.courses) {
		return fmt.Errorf("%w: courses", ErrUnsorted)
	}
	for i, row := range m.cells {
		for j, v := range row {
			if v == Sentinel {
				continue
			}
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return fmt.Errorf("%w: %v at (%s, %s)", ErrInvalidCell, v, m.students[i], m.courses[j])
			}
		}
	}
	return nil
}

func strictlyAscending(labels []string) bool {
	for i := 1; i < len(labels); i++ {
		if labels[i-1] >= labels[i] {
			return false
		}
	}
	return true
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
