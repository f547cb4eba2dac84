package verify_test

import (
	"testing"

	"github.com/okian/gradevec/internal/domain/matrix"
	"github.com/okian/gradevec/internal/domain/model"
	"github.com/okian/gradevec/internal/domain/pipeline"
	"github.com/okian/gradevec/internal/domain/verify"
	. "github.com/smartystreets/goconvey/convey"
)

func rec(code, letter string, credit float64) model.RawRecord {
	return model.RawRecord{CourseCode: code, LetterGrade: model.Grade(letter), Credit: credit}
}

func transcripts() []model.Transcript {
	return []model.Transcript{
		{StudentID: "S1", Records: []model.RawRecord{
			rec("MAT103E", "AA", 4),
			rec("MAT103", "CC", 4),
			rec("ING101", "BL", 2),
		}},
		{StudentID: "S2", Records: []model.RawRecord{
			rec("BIL101", "BB", 3),
			rec("FIZ101", "DD / Original Entry", 0),
		}},
	}
}

func TestVerifier_RoundTrip(t *testing.T) {
	Convey("Given a matrix generated from transcripts", t, func() {
		p := pipeline.New()
		ts := transcripts()
		m, err := p.Run(ts)
		So(err, ShouldBeNil)

		Convey("When verifying with the same configuration", func() {
			summary := verify.New(p).All(m, ts)

			Convey("Then every report should be consistent", func() {
				So(summary.Reports, ShouldHaveLength, 2)
				So(summary.Consistent(), ShouldBeTrue)
				So(summary.Inconsistent(), ShouldBeEmpty)
				So(summary.UnknownStudents, ShouldBeEmpty)
				for _, r := range summary.Reports {
					So(r.Mismatches, ShouldBeEmpty)
					So(r.Ghosts, ShouldBeEmpty)
					So(r.MissingRow, ShouldBeFalse)
				}
			})
		})

		Convey("When verifying a single student with the package helper", func() {
			r := verify.Student(p, m, ts[0])

			Convey("Then it should be consistent", func() {
				So(r.StudentID, ShouldEqual, "S1")
				So(r.Expected, ShouldEqual, 1)
				So(r.Consistent(), ShouldBeTrue)
			})
		})
	})
}

func TestVerifier_Detects(t *testing.T) {
	Convey("Given a hand-built matrix", t, func() {
		p := pipeline.New()
		tr := model.Transcript{StudentID: "S1", Records: []model.RawRecord{
			rec("MAT103E", "AA", 4),
			rec("MAT103", "CC", 4),
		}}

		Convey("When a cell is off by more than the tolerance", func() {
			m, err := matrix.New([]string{"S1"}, []string{"MAT103"}, [][]float64{{7.5}})
			So(err, ShouldBeNil)
			r := verify.New(p).Student(m, tr)

			Convey("Then a mismatch should be reported", func() {
				So(r.Consistent(), ShouldBeFalse)
				So(r.Mismatches, ShouldHaveLength, 1)
				So(r.Mismatches[0].Course, ShouldEqual, "MAT103")
				So(r.Mismatches[0].Expected, ShouldAlmostEqual, 7.2, 0.01)
				So(r.Mismatches[0].Actual, ShouldEqual, 7.5)
			})
		})

		Convey("When a cell is within the tolerance", func() {
			m, err := matrix.New([]string{"S1"}, []string{"MAT103"}, [][]float64{{7.205}})
			So(err, ShouldBeNil)

			Convey("Then the student should be consistent", func() {
				So(verify.New(p).Student(m, tr).Consistent(), ShouldBeTrue)
			})

			Convey("Then a stricter tolerance should flag it", func() {
				r := verify.New(p, verify.WithTolerance(0.001)).Student(m, tr)
				So(r.Mismatches, ShouldHaveLength, 1)
			})
		})

		Convey("When the row holds a score for an untaken course", func() {
			m, err := matrix.New([]string{"S1"}, []string{"FIZ101", "KIM101", "MAT103"}, [][]float64{{3, -1, 7.2}})
			So(err, ShouldBeNil)
			r := verify.New(p).Student(m, tr)

			Convey("Then a ghost should be reported for the non-sentinel cell only", func() {
				So(r.Consistent(), ShouldBeFalse)
				So(r.Ghosts, ShouldResemble, []verify.Ghost{{Course: "FIZ101", Actual: 3.0}})
				So(r.Mismatches, ShouldBeEmpty)
			})
		})

		Convey("When the recomputed course has no column", func() {
			m, err := matrix.New([]string{"S1"}, []string{"FIZ101"}, [][]float64{{-1}})
			So(err, ShouldBeNil)
			r := verify.New(p).Student(m, tr)

			Convey("Then the column should be reported missing", func() {
				So(r.MissingColumns, ShouldResemble, []string{"MAT103"})
				So(r.Consistent(), ShouldBeFalse)
			})
		})

		Convey("When the student has no row", func() {
			m, err := matrix.New([]string{"S2"}, []string{"MAT103"}, [][]float64{{2}})
			So(err, ShouldBeNil)
			summary := verify.New(p).All(m, []model.Transcript{tr})

			Convey("Then the report should flag the missing row", func() {
				So(summary.Reports[0].MissingRow, ShouldBeTrue)
				So(summary.Consistent(), ShouldBeFalse)
				So(summary.UnknownStudents, ShouldResemble, []string{"S2"})
			})

			Convey("Then the row without a transcript should report its cells as ghosts", func() {
				So(summary.Reports, ShouldHaveLength, 2)
				orphan := summary.Reports[1]
				So(orphan.StudentID, ShouldEqual, "S2")
				So(orphan.NoTranscript, ShouldBeTrue)
				So(orphan.Ghosts, ShouldResemble, []verify.Ghost{{Course: "MAT103", Actual: 2.0}})
				So(summary.Inconsistent(), ShouldHaveLength, 2)
			})

			Convey("Then checking only the given transcripts should ignore that row", func() {
				only := verify.New(p).Students(m, []model.Transcript{tr})
				So(only.Reports, ShouldHaveLength, 1)
				So(only.UnknownStudents, ShouldBeEmpty)
			})
		})

		Convey("When a row without a transcript holds only sentinels", func() {
			m, err := matrix.New([]string{"S1", "S9"}, []string{"MAT103"}, [][]float64{{7.2}, {-1}})
			So(err, ShouldBeNil)
			summary := verify.New(p).All(m, []model.Transcript{tr})

			Convey("Then it should not make the summary inconsistent", func() {
				So(summary.Reports, ShouldHaveLength, 2)
				So(summary.Reports[1].NoTranscript, ShouldBeTrue)
				So(summary.Reports[1].Ghosts, ShouldBeEmpty)
				So(summary.Consistent(), ShouldBeTrue)
			})
		})

		Convey("When a student without valid grades has no row", func() {
			m, err := matrix.New([]string{"S2"}, []string{"MAT103"}, [][]float64{{2}})
			So(err, ShouldBeNil)
			empty := model.Transcript{StudentID: "S3", Records: []model.RawRecord{rec("ING101", "BL", 2)}}

			Convey("Then it should be consistent", func() {
				r := verify.New(p).Student(m, empty)
				So(r.MissingRow, ShouldBeTrue)
				So(r.Consistent(), ShouldBeTrue)
			})
		})
	})

	Convey("Given invalid tolerance options", t, func() {
		v := verify.New(nil, verify.WithTolerance(-1))

		Convey("Then the default should be kept", func() {
			So(v.Tolerance(), ShouldEqual, verify.DefaultTolerance)
		})
	})
}
