// Package scoring turns an attempt summary into the weighted course score
// stored in the feature matrix.
package scoring

import (
	"fmt"
	"math"
	"strings"
)

// Default weighting parameters.
const (
	defaultShrinkStep  = 0.1
	defaultShrinkFloor = 0.7
	defaultMinCredit   = 1.0
)

// Formula names accepted by New.
const (
	FormulaWeighted = "weighted"
	FormulaBest     = "best"
)

// Input abstracts the summary fields needed for scoring.
type Input struct {
	BestGrade float64
	Attempts  int
	Credit    float64
}

// Scorer computes one course score. Implementations must be pure and total
// so that a verifier holding the same Scorer recomputes identical values.
type Scorer interface {
	Score(in Input) float64
	Name() string
}

// Option applies a configuration option to the Weighted scorer.
type Option func(*Weighted)

// WithShrinkStep sets the penalty subtracted per repeated attempt.
func WithShrinkStep(step float64) Option {
	return func(w *Weighted) {
		if step >= 0 {
			w.shrinkStep = step
		}
	}
}

// WithShrinkFloor sets the lowest shrink multiplier.
func WithShrinkFloor(floor float64) Option {
	return func(w *Weighted) {
		if floor > 0 && floor <= 1 {
			w.shrinkFloor = floor
		}
	}
}

// WithMinCredit sets the credit below which courses weigh as minCredit.
func WithMinCredit(minCredit float64) Option {
	return func(w *Weighted) {
		if minCredit > 0 {
			w.minCredit = minCredit
		}
	}
}

// Weighted scores best × Shrink(attempts) × CreditWeight(credit). The result
// is a relative importance score, not a GPA, and is never rescaled.
type Weighted struct {
	shrinkStep  float64
	shrinkFloor float64
	minCredit   float64
}

// NewWeighted creates the default weighted scorer.
func NewWeighted(opts ...Option) *Weighted {
	w := &Weighted{
		shrinkStep:  defaultShrinkStep,
		shrinkFloor: defaultShrinkFloor,
		minCredit:   defaultMinCredit,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Name implements Scorer.
func (w *Weighted) Name() string { return FormulaWeighted }

// Score implements Scorer.
func (w *Weighted) Score(in Input) float64 {
	return in.BestGrade * w.Shrink(in.Attempts) * w.CreditWeight(in.Credit)
}

// Shrink is 1 for a first attempt and loses shrinkStep per repeat, never
// dropping below shrinkFloor.
func (w *Weighted) Shrink(attempts int) float64 {
	if attempts < 1 {
		attempts = 1
	}
	return math.Max(1.0-w.shrinkStep*float64(attempts-1), w.shrinkFloor)
}

// CreditWeight is sqrt(max(credit, minCredit)). NaN credits weigh as minCredit.
func (w *Weighted) CreditWeight(credit float64) float64 {
	if math.IsNaN(credit) || credit < w.minCredit {
		credit = w.minCredit
	}
	return math.Sqrt(credit)
}

// Best scores a course by its best grade alone, ignoring attempts and credit.
type Best struct{}

// Name implements Scorer.
func (Best) Name() string { return FormulaBest }

// Score implements Scorer.
func (Best) Score(in Input) float64 { return in.BestGrade }

// New returns the scorer registered under formula. Options only apply to
// the weighted formula.
func New(formula string, opts ...Option) (Scorer, error) {
	switch strings.ToLower(strings.TrimSpace(formula)) {
	case "", FormulaWeighted:
		return NewWeighted(opts...), nil
	case FormulaBest:
		return Best{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormula, formula)
	}
}
