package pipeline

import "errors"

// Sentinel kinds for pipeline errors.
var (
	ErrNoValidEntries = errors.New("no student produced a valid entry")
)
