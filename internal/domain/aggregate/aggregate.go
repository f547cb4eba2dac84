// Package aggregate collapses repeated course attempts into one summary per
// normalized course.
package aggregate

import (
	"sort"

	"github.com/okian/gradevec/internal/domain/grade"
	"github.com/okian/gradevec/internal/domain/model"
)

// Attempt is one transcript row after normalization and decoding.
type Attempt struct {
	Course string // normalized course code
	Grade  grade.Decoded
	Credit float64
}

// Aggregate groups attempts by normalized course. Exempt and undecodable
// rows are dropped before counting; a course left with no rows yields no
// summary. Best grade and credit are the maxima over the surviving rows.
// Results are ordered by course.
func Aggregate(studentID string, attempts []Attempt) []model.AttemptSummary {
	groups := make(map[string]*model.AttemptSummary)

	for _, a := range attempts {
		if !a.Grade.Valid() {
			continue
		}
		s, ok := groups[a.Course]
		if !ok {
			groups[a.Course] = &model.AttemptSummary{
				StudentID: studentID,
				Course:    a.Course,
				BestGrade: a.Grade.Value,
				Attempts:  1,
				Credit:    a.Credit,
			}
			continue
		}
		s.Attempts++
		if a.Grade.Value > s.BestGrade {
			s.BestGrade = a.Grade.Value
		}
		if a.Credit > s.Credit {
			s.Credit = a.Credit
		}
	}

	out := make([]model.AttemptSummary, 0, len(groups))
	for _, s := range groups {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Course < out[j].Course })
	return out
}

// ExemptOnly returns, sorted, the courses that appear only with exempt
// grades. They end up as the not-taken sentinel in the matrix.
func ExemptOnly(attempts []Attempt) []string {
	exempt := make(map[string]bool)
	valid := make(map[string]bool)
	for _, a := range attempts {
		switch a.Grade.Kind {
		case grade.Exempt:
			exempt[a.Course] = true
		case grade.Numeric:
			valid[a.Course] = true
		}
	}

	var out []string
	for c := range exempt {
		if !valid[c] {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}
