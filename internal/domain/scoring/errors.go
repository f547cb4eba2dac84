package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrUnknownFormula = errors.New("unknown scoring formula")
)
