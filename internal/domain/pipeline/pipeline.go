// Package pipeline runs one student transcript through normalization,
// decoding, aggregation and scoring. A single Pipeline value is the
// configuration shared by matrix generation and verification.
package pipeline

import (
	"github.com/okian/gradevec/internal/domain/aggregate"
	"github.com/okian/gradevec/internal/domain/course"
	"github.com/okian/gradevec/internal/domain/grade"
	"github.com/okian/gradevec/internal/domain/matrix"
	"github.com/okian/gradevec/internal/domain/model"
	"github.com/okian/gradevec/internal/domain/scoring"
)

// Pipeline is immutable after New and safe for concurrent use.
type Pipeline struct {
	decoder *grade.Decoder
	scorer  scoring.Scorer
}

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithDecoder sets the grade decoder.
func WithDecoder(d *grade.Decoder) Option {
	return func(p *Pipeline) {
		if d != nil {
			p.decoder = d
		}
	}
}

// WithScorer sets the weighting strategy.
func WithScorer(s scoring.Scorer) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.scorer = s
		}
	}
}

// New creates a Pipeline with the default scale and weighted formula
// unless overridden.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		decoder: grade.NewDecoder(nil),
		scorer:  scoring.NewWeighted(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Scorer returns the weighting strategy in use.
func (p *Pipeline) Scorer() scoring.Scorer { return p.scorer }

// Decoder returns the grade decoder in use.
func (p *Pipeline) Decoder() *grade.Decoder { return p.decoder }

// Summaries normalizes and decodes every record of t and aggregates them
// per course. Rows without a course code are dropped.
func (p *Pipeline) Summaries(t model.Transcript) ([]model.AttemptSummary, model.StudentStats) {
	stats := model.StudentStats{Rows: len(t.Records)}
	attempts := make([]aggregate.Attempt, 0, len(t.Records))

	for _, r := range t.Records {
		code := course.Normalize(r.CourseCode)
		if code == "" {
			stats.NoCourse++
			continue
		}
		decoded := p.decoder.Decode(r.LetterGrade)
		switch decoded.Kind {
		case grade.Numeric:
			stats.Numeric++
		case grade.Exempt:
			stats.Exempt++
		default:
			stats.NoValue++
		}
		attempts = append(attempts, aggregate.Attempt{Course: code, Grade: decoded, Credit: r.Credit})
	}

	summaries := aggregate.Aggregate(t.StudentID, attempts)
	stats.Courses = len(summaries)
	stats.ExemptOnly = aggregate.ExemptOnly(attempts)
	return summaries, stats
}

// ScoreStudent returns one scored entry per course the student has a valid
// grade for, ordered by course.
func (p *Pipeline) ScoreStudent(t model.Transcript) ([]model.ScoredEntry, model.StudentStats) {
	summaries, stats := p.Summaries(t)
	entries := make([]model.ScoredEntry, len(summaries))
	for i, s := range summaries {
		entries[i] = model.ScoredEntry{
			StudentID: s.StudentID,
			Course:    s.Course,
			Score: p.scorer.Score(scoring.Input{
				BestGrade: s.BestGrade,
				Attempts:  s.Attempts,
				Credit:    s.Credit,
			}),
		}
	}
	return entries, stats
}

// Run scores every transcript sequentially and assembles the matrix. The
// service scores on a worker pool instead and shares the tail through
// Assemble.
func (p *Pipeline) Run(transcripts []model.Transcript) (*matrix.FeatureMatrix, error) {
	var all []model.ScoredEntry
	for _, t := range transcripts {
		entries, _ := p.ScoreStudent(t)
		all = append(all, entries...)
	}
	return Assemble(all)
}

// Assemble pivots scored entries into the matrix. It returns
// ErrNoValidEntries when there are none.
func Assemble(entries []model.ScoredEntry) (*matrix.FeatureMatrix, error) {
	if len(entries) == 0 {
		return nil, ErrNoValidEntries
	}
	return matrix.Assemble(entries), nil
}
