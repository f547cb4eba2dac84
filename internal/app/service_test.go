package service_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	service "github.com/okian/gradevec/internal/app"
	"github.com/okian/gradevec/internal/adapters/sink"
	"github.com/okian/gradevec/internal/adapters/source"
	"github.com/okian/gradevec/internal/adapters/table"
	"github.com/okian/gradevec/internal/domain/matrix"
	"github.com/okian/gradevec/internal/domain/model"
	"github.com/okian/gradevec/internal/domain/pipeline"
	"github.com/okian/gradevec/internal/domain/scoring"
	"github.com/okian/gradevec/internal/domain/verify"
	"github.com/okian/gradevec/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

var header = []any{"Ders Kodu", "Harf Notu", "Kredi"}

// slowLoader delays every load and ignores cancellation.
type slowLoader struct {
	delay time.Duration
}

func (l slowLoader) Load(_ context.Context, path string) (model.Transcript, error) {
	time.Sleep(l.delay)
	return source.NewFileLoader().Load(context.Background(), path)
}

func writeStudent(dir, name string, rows ...[]any) {
	So(table.WriteXLSX(filepath.Join(dir, name), "", append([][]any{header}, rows...)), ShouldBeNil)
}

func fixture(dir string) {
	writeStudent(dir, "Öğrenci (1).xlsx",
		[]any{"MAT103E", "AA", 4},
		[]any{"MAT103", "CC", 4},
		[]any{"ING101", "BL", 2},
	)
	writeStudent(dir, "Öğrenci (2).xlsx",
		[]any{"BIL101", "BB", 3},
		[]any{"FIZ101", "DD / Original Entry", 0},
		[]any{"", "AA", 4},
	)
	writeStudent(dir, "Öğrenci (3).xlsx",
		[]any{"ING101", "BL", 2},
	)
	So(table.WriteXLSX(filepath.Join(dir, "Öğrenci (4).xlsx"), "", [][]any{{"Kod", "Not"}, {"MAT103", "AA"}}), ShouldBeNil)
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		best, err := scoring.New("best")
		So(err, ShouldBeNil)
		svc := service.New(
			service.WithWorkerCount(8),
			service.WithQueueSize(16),
			service.WithTolerance(0.5),
			service.WithPipeline(pipeline.New(pipeline.WithScorer(best))),
			service.WithLoader(source.NewFileLoader()),
			service.WithLogger(logger.Get()),
		)

		Convey("Then it should be created successfully", func() {
			So(svc, ShouldNotBeNil)
		})
	})
}

func TestService_Build(t *testing.T) {
	Convey("Given a directory of student workbooks", t, func() {
		dir := t.TempDir()
		fixture(dir)
		svc := service.New(service.WithWorkerCount(3), service.WithQueueSize(2))
		ctx := context.Background()

		Convey("When building the matrix", func() {
			res, err := svc.Build(ctx, dir, "")
			So(err, ShouldBeNil)
			m := res.Matrix

			Convey("Then rows should exist only for students with valid entries", func() {
				So(m.Students(), ShouldResemble, []string{"Öğrenci (1)", "Öğrenci (2)"})
				So(res.Students, ShouldEqual, 3)
			})

			Convey("Then columns should be the union of valid courses", func() {
				So(m.Courses(), ShouldResemble, []string{"BIL101", "FIZ101", "MAT103"})
			})

			Convey("Then the merged retake should score 7.2", func() {
				v, ok := m.Value("Öğrenci (1)", "MAT103")
				So(ok, ShouldBeTrue)
				So(v, ShouldAlmostEqual, 7.2, 0.01)

				v, _ = m.Value("Öğrenci (1)", "BIL101")
				So(v, ShouldEqual, matrix.Sentinel)
			})

			Convey("Then the student without required columns should be skipped", func() {
				So(res.Skipped, ShouldHaveLength, 1)
				So(res.Skipped[0].StudentID, ShouldEqual, "Öğrenci (4)")
				So(errors.Is(res.Skipped[0].Err, source.ErrMissingColumns), ShouldBeTrue)
			})

			Convey("Then a run id should be assigned", func() {
				So(res.RunID.String(), ShouldNotBeEmpty)
			})

			Convey("Then decode totals should cover the loaded students", func() {
				So(res.Records, ShouldResemble, service.RecordTotals{
					Rows:       7,
					Numeric:    4,
					Exempt:     2,
					NoCourse:   1,
					ExemptOnly: 2,
				})
			})
		})

		Convey("When building twice", func() {
			a, errA := svc.Build(ctx, dir, "")
			b, errB := svc.Build(ctx, dir, "")

			Convey("Then the matrices should be identical", func() {
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(b.Matrix.Students(), ShouldResemble, a.Matrix.Students())
				So(b.Matrix.Courses(), ShouldResemble, a.Matrix.Courses())
				for _, s := range a.Matrix.Students() {
					ra, _ := a.Matrix.Row(s)
					rb, _ := b.Matrix.Row(s)
					So(rb, ShouldResemble, ra)
				}
			})
		})

		Convey("When the same student appears as workbook and CSV", func() {
			So(table.WriteCSVFile(filepath.Join(dir, "Öğrenci (1).csv"), [][]string{
				{"Ders Kodu", "Harf Notu", "Kredi"},
				{"KIM101", "AA", "3"},
			}, true), ShouldBeNil)
			res, err := svc.Build(ctx, dir, "*")

			Convey("Then the first file in order should win", func() {
				So(err, ShouldBeNil)
				So(res.Duplicates, ShouldHaveLength, 1)
				So(filepath.Base(res.Duplicates[0]), ShouldEqual, "Öğrenci (1).xlsx")
				So(res.Matrix.HasCourse("KIM101"), ShouldBeTrue)
				v, _ := res.Matrix.Value("Öğrenci (1)", "MAT103")
				So(v, ShouldEqual, matrix.Sentinel)
			})
		})

		Convey("When no file matches", func() {
			_, err := svc.Build(ctx, dir, "*.ods")
			So(errors.Is(err, source.ErrNoInputFiles), ShouldBeTrue)
		})

		Convey("When no student has a valid grade", func() {
			empty := t.TempDir()
			writeStudent(empty, "S1.xlsx", []any{"ING101", "BL", 2})
			_, err := svc.Build(ctx, empty, "")
			So(errors.Is(err, pipeline.ErrNoValidEntries), ShouldBeTrue)
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := svc.Build(cctx, dir, "")
			So(err, ShouldNotBeNil)
		})

		Convey("When the run is interrupted while a worker is busy", func() {
			slow := service.New(
				service.WithWorkerCount(1),
				service.WithLoader(slowLoader{delay: 2 * time.Second}),
				service.WithShutdownTimeout(20*time.Millisecond),
			)
			cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()

			start := time.Now()
			_, err := slow.Build(cctx, dir, "")

			Convey("Then it should give up after the shutdown timeout", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
				So(time.Since(start) < time.Second, ShouldBeTrue)
			})
		})
	})
}

func TestService_Verify(t *testing.T) {
	Convey("Given a matrix written to disk and read back", t, func() {
		dir := t.TempDir()
		fixture(dir)
		svc := service.New(service.WithWorkerCount(2))
		ctx := context.Background()

		res, err := svc.Build(ctx, dir, "")
		So(err, ShouldBeNil)
		out := filepath.Join(t.TempDir(), "features.csv")
		So(sink.WriteMatrix(out, res.Matrix), ShouldBeNil)
		m, err := sink.ReadMatrix(out)
		So(err, ShouldBeNil)

		Convey("When verifying every student", func() {
			vr, err := svc.Verify(ctx, m, dir, "", nil)

			Convey("Then the round trip should be consistent", func() {
				So(err, ShouldBeNil)
				So(vr.Consistent(), ShouldBeTrue)
				So(vr.Summary.Reports, ShouldHaveLength, 3)
				for _, r := range vr.Summary.Reports {
					So(r.Mismatches, ShouldBeEmpty)
					So(r.Ghosts, ShouldBeEmpty)
				}
				So(vr.Skipped, ShouldHaveLength, 1)
			})
		})

		Convey("When verifying selected students", func() {
			vr, err := svc.Verify(ctx, m, dir, "", []string{"Öğrenci (2)", "Öğrenci (9)"})

			Convey("Then only they should be checked and unknown ids reported", func() {
				So(err, ShouldBeNil)
				So(vr.Summary.Reports, ShouldHaveLength, 1)
				So(vr.Summary.Reports[0].StudentID, ShouldEqual, "Öğrenci (2)")
				So(vr.NotFound, ShouldResemble, []string{"Öğrenci (9)"})
				So(vr.Consistent(), ShouldBeFalse)
			})
		})

		Convey("When a transcript changed after the build", func() {
			So(os.Remove(filepath.Join(dir, "Öğrenci (2).xlsx")), ShouldBeNil)
			writeStudent(dir, "Öğrenci (2).xlsx", []any{"BIL101", "AA", 3})
			vr, err := svc.Verify(ctx, m, dir, "", []string{"Öğrenci (2)"})

			Convey("Then mismatches and ghosts should be reported", func() {
				So(err, ShouldBeNil)
				So(vr.Consistent(), ShouldBeFalse)
				r := vr.Summary.Reports[0]
				So(r.Mismatches, ShouldHaveLength, 1)
				So(r.Mismatches[0].Course, ShouldEqual, "BIL101")
				So(r.Ghosts, ShouldHaveLength, 1)
				So(r.Ghosts[0].Course, ShouldEqual, "FIZ101")
			})
		})

		Convey("When a requested transcript can no longer be read", func() {
			So(os.Remove(filepath.Join(dir, "Öğrenci (2).xlsx")), ShouldBeNil)
			So(table.WriteXLSX(filepath.Join(dir, "Öğrenci (2).xlsx"), "", [][]any{{"Ders Kodu", "Kredi"}, {"BIL101", 3}}), ShouldBeNil)
			vr, err := svc.Verify(ctx, m, dir, "", []string{"Öğrenci (2)"})

			Convey("Then the student should count as not found", func() {
				So(err, ShouldBeNil)
				So(vr.Summary.Reports, ShouldBeEmpty)
				So(vr.Skipped, ShouldHaveLength, 1)
				So(vr.NotFound, ShouldResemble, []string{"Öğrenci (2)"})
				So(vr.Consistent(), ShouldBeFalse)
			})
		})

		Convey("When a stored row has no readable transcript", func() {
			So(os.Remove(filepath.Join(dir, "Öğrenci (2).xlsx")), ShouldBeNil)
			So(table.WriteXLSX(filepath.Join(dir, "Öğrenci (2).xlsx"), "", [][]any{{"Ders Kodu", "Kredi"}, {"BIL101", 3}}), ShouldBeNil)
			vr, err := svc.Verify(ctx, m, dir, "", nil)

			Convey("Then its scores should be reported as ghosts", func() {
				So(err, ShouldBeNil)
				So(vr.Consistent(), ShouldBeFalse)
				So(vr.Summary.UnknownStudents, ShouldResemble, []string{"Öğrenci (2)"})

				var orphan *verify.Report
				for i := range vr.Summary.Reports {
					if vr.Summary.Reports[i].StudentID == "Öğrenci (2)" {
						orphan = &vr.Summary.Reports[i]
					}
				}
				So(orphan, ShouldNotBeNil)
				So(orphan.NoTranscript, ShouldBeTrue)
				So(orphan.Ghosts, ShouldHaveLength, 2)
				So(orphan.Ghosts[0].Course, ShouldEqual, "BIL101")
				So(orphan.Ghosts[1].Course, ShouldEqual, "FIZ101")
			})
		})

		Convey("When verifying with another formula", func() {
			best, err := scoring.New("best")
			So(err, ShouldBeNil)
			other := service.New(service.WithPipeline(pipeline.New(pipeline.WithScorer(best))))
			vr, err := other.Verify(ctx, m, dir, "", []string{"Öğrenci (1)"})

			Convey("Then the stored weighted scores should not match", func() {
				So(err, ShouldBeNil)
				So(vr.Consistent(), ShouldBeFalse)
			})
		})
	})
}
