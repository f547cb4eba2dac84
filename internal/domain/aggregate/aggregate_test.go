package aggregate_test

import (
	"testing"

	"github.com/okian/gradevec/internal/domain/aggregate"
	"github.com/okian/gradevec/internal/domain/grade"
	. "github.com/smartystreets/goconvey/convey"
)

func numeric(v float64) grade.Decoded { return grade.Decoded{Kind: grade.Numeric, Value: v} }

var (
	exempt  = grade.Decoded{Kind: grade.Exempt, Value: grade.ExemptValue}
	noValue = grade.Decoded{Kind: grade.NoValue}
)

func TestAggregate(t *testing.T) {
	Convey("Given repeated attempts of one course", t, func() {
		attempts := []aggregate.Attempt{
			{Course: "MAT103", Grade: numeric(2.0), Credit: 4},
			{Course: "MAT103", Grade: numeric(3.5), Credit: 4},
			{Course: "MAT103", Grade: numeric(3.0), Credit: 4},
		}

		Convey("When aggregating", func() {
			got := aggregate.Aggregate("S1", attempts)

			Convey("Then the best grade and attempt count should be kept", func() {
				So(got, ShouldHaveLength, 1)
				So(got[0].StudentID, ShouldEqual, "S1")
				So(got[0].Course, ShouldEqual, "MAT103")
				So(got[0].BestGrade, ShouldEqual, 3.5)
				So(got[0].Attempts, ShouldEqual, 3)
				So(got[0].Credit, ShouldEqual, 4.0)
			})
		})
	})

	Convey("Given attempts with inconsistent credits", t, func() {
		attempts := []aggregate.Attempt{
			{Course: "FIZ101", Grade: numeric(1.0), Credit: 3},
			{Course: "FIZ101", Grade: numeric(2.0), Credit: 0},
			{Course: "FIZ101", Grade: noValue, Credit: 9},
			{Course: "FIZ101", Grade: exempt, Credit: 12},
		}

		Convey("Then credit should be the maximum over valid rows only", func() {
			got := aggregate.Aggregate("S1", attempts)
			So(got, ShouldHaveLength, 1)
			So(got[0].Credit, ShouldEqual, 3.0)
			So(got[0].Attempts, ShouldEqual, 2)
		})
	})

	Convey("Given a course graded only BL", t, func() {
		attempts := []aggregate.Attempt{
			{Course: "ING101", Grade: exempt, Credit: 3},
			{Course: "MAT103", Grade: numeric(4.0), Credit: 4},
		}

		Convey("Then it should produce no summary", func() {
			got := aggregate.Aggregate("S1", attempts)
			So(got, ShouldHaveLength, 1)
			So(got[0].Course, ShouldEqual, "MAT103")
		})

		Convey("Then it should be reported as exempt only", func() {
			So(aggregate.ExemptOnly(attempts), ShouldResemble, []string{"ING101"})
		})
	})

	Convey("Given an exempt attempt next to a graded one", t, func() {
		attempts := []aggregate.Attempt{
			{Course: "ING101", Grade: exempt, Credit: 3},
			{Course: "ING101", Grade: numeric(0.0), Credit: 3},
		}

		Convey("Then the exempt row should not count as an attempt", func() {
			got := aggregate.Aggregate("S1", attempts)
			So(got, ShouldHaveLength, 1)
			So(got[0].Attempts, ShouldEqual, 1)
			So(got[0].BestGrade, ShouldEqual, 0.0)
			So(aggregate.ExemptOnly(attempts), ShouldBeEmpty)
		})
	})

	Convey("Given only undecodable rows", t, func() {
		attempts := []aggregate.Attempt{
			{Course: "X", Grade: noValue},
			{Course: "Y", Grade: noValue},
		}

		Convey("Then nothing should be emitted", func() {
			So(aggregate.Aggregate("S1", attempts), ShouldBeEmpty)
			So(aggregate.Aggregate("S1", nil), ShouldBeEmpty)
		})
	})

	Convey("Given several courses in arbitrary order", t, func() {
		attempts := []aggregate.Attempt{
			{Course: "MAT201", Grade: numeric(3.0), Credit: 3},
			{Course: "AKM101", Grade: numeric(2.0), Credit: 2},
			{Course: "BIL101", Grade: numeric(4.0), Credit: 3},
		}

		Convey("Then summaries should be ordered by course", func() {
			got := aggregate.Aggregate("S1", attempts)
			So(got, ShouldHaveLength, 3)
			So(got[0].Course, ShouldEqual, "AKM101")
			So(got[1].Course, ShouldEqual, "BIL101")
			So(got[2].Course, ShouldEqual, "MAT201")
		})
	})
}
