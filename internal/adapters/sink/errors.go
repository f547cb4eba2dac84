package sink

import "errors"

// Sentinel kinds for sink errors.
var (
	ErrBadHeader = errors.New("matrix header malformed")
	ErrBadCell   = errors.New("matrix cell malformed")
)
