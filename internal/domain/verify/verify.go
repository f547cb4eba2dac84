// Package verify recomputes a student's scores from the raw transcript and
// compares them with a stored feature matrix.
package verify

import (
	"math"
	"sort"

	"github.com/okian/gradevec/internal/domain/matrix"
	"github.com/okian/gradevec/internal/domain/model"
	"github.com/okian/gradevec/internal/domain/pipeline"
)

// DefaultTolerance is the absolute difference allowed between a recomputed
// score and the stored cell.
const DefaultTolerance = 0.01

// Mismatch is a course whose stored cell differs from the recomputed score.
type Mismatch struct {
	Course   string
	Expected float64
	Actual   float64
}

// Ghost is a stored non-sentinel cell for a course the transcript does not
// produce a score for.
type Ghost struct {
	Course string
	Actual float64
}

// Report is the outcome of verifying one student.
type Report struct {
	StudentID  string
	MissingRow bool
	// NoTranscript marks a matrix row no transcript accounts for; every
	// non-sentinel cell of it is a ghost.
	NoTranscript   bool
	Mismatches     []Mismatch
	MissingColumns []string
	Ghosts         []Ghost
	Expected       int // recomputed courses
}

// Consistent reports whether the stored row matches the transcript exactly.
// A student with no valid entries is consistent when it also has no row.
func (r Report) Consistent() bool {
	if r.MissingRow && r.Expected > 0 {
		return false
	}
	return len(r.Mismatches) == 0 && len(r.MissingColumns) == 0 && len(r.Ghosts) == 0
}

// Summary aggregates the reports of a verification run.
type Summary struct {
	Reports []Report
	// UnknownStudents are matrix rows without a transcript in the checked
	// set. All also reports each of them with its cells as ghosts.
	UnknownStudents []string
}

// Consistent reports whether every report is consistent.
func (s Summary) Consistent() bool {
	for _, r := range s.Reports {
		if !r.Consistent() {
			return false
		}
	}
	return true
}

// Inconsistent returns the reports that failed.
func (s Summary) Inconsistent() []Report {
	var out []Report
	for _, r := range s.Reports {
		if !r.Consistent() {
			out = append(out, r)
		}
	}
	return out
}

// Verifier checks stored rows against a pipeline configuration.
type Verifier struct {
	pipeline  *pipeline.Pipeline
	tolerance float64
}

// Option applies a configuration option to the Verifier.
type Option func(*Verifier)

// WithTolerance sets the allowed absolute difference. Negative or NaN values
// are ignored.
func WithTolerance(tol float64) Option {
	return func(v *Verifier) {
		if tol >= 0 {
			v.tolerance = tol
		}
	}
}

// New creates a Verifier. A nil pipeline uses the default configuration.
func New(p *pipeline.Pipeline, opts ...Option) *Verifier {
	if p == nil {
		p = pipeline.New()
	}
	v := &Verifier{pipeline: p, tolerance: DefaultTolerance}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Tolerance returns the configured tolerance.
func (v *Verifier) Tolerance() float64 { return v.tolerance }

// Student verifies one transcript against m.
func (v *Verifier) Student(m *matrix.FeatureMatrix, t model.Transcript) Report {
	entries, _ := v.pipeline.ScoreStudent(t)
	report := Report{StudentID: t.StudentID, Expected: len(entries)}

	if !m.HasStudent(t.StudentID) {
		report.MissingRow = true
		return report
	}

	expected := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		expected[e.Course] = struct{}{}
		actual, ok := m.Value(t.StudentID, e.Course)
		if !ok {
			report.MissingColumns = append(report.MissingColumns, e.Course)
			continue
		}
		if math.IsNaN(actual) || math.Abs(actual-e.Score) > v.tolerance {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Course:   e.Course,
				Expected: e.Score,
				Actual:   actual,
			})
		}
	}

	row, _ := m.Row(t.StudentID)
	report.Ghosts = ghosts(row, m.Courses(), expected)
	return report
}

// Students verifies only the given transcripts. Reports are ordered by
// student id.
func (v *Verifier) Students(m *matrix.FeatureMatrix, transcripts []model.Transcript) Summary {
	var summary Summary
	for _, t := range transcripts {
		summary.Reports = append(summary.Reports, v.Student(m, t))
	}
	sortReports(summary.Reports)
	return summary
}

// All verifies every transcript and also checks the matrix rows no
// transcript accounts for: their non-sentinel cells are ghosts.
func (v *Verifier) All(m *matrix.FeatureMatrix, transcripts []model.Transcript) Summary {
	summary := v.Students(m, transcripts)
	known := make(map[string]struct{}, len(transcripts))
	for _, t := range transcripts {
		known[t.StudentID] = struct{}{}
	}
	for _, s := range m.Students() {
		if _, ok := known[s]; ok {
			continue
		}
		summary.UnknownStudents = append(summary.UnknownStudents, s)
		summary.Reports = append(summary.Reports, orphan(m, s))
	}
	sortReports(summary.Reports)
	return summary
}

// orphan reports a matrix row that has no transcript.
func orphan(m *matrix.FeatureMatrix, studentID string) Report {
	row, _ := m.Row(studentID)
	return Report{
		StudentID:    studentID,
		NoTranscript: true,
		Ghosts:       ghosts(row, m.Courses(), nil),
	}
}

func ghosts(row []float64, courses []string, expected map[string]struct{}) []Ghost {
	var out []Ghost
	for j, actual := range row {
		if actual == matrix.Sentinel {
			continue
		}
		if _, ok := expected[courses[j]]; ok {
			continue
		}
		out = append(out, Ghost{Course: courses[j], Actual: actual})
	}
	return out
}

func sortReports(reports []Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].StudentID < reports[j].StudentID
	})
}

// Student verifies t against m with the default tolerance.
func Student(p *pipeline.Pipeline, m *matrix.FeatureMatrix, t model.Transcript) Report {
	return New(p).Student(m, t)
}
