package matrix

import "errors"

// Sentinel kinds for matrix errors.
var (
	ErrShape          = errors.New("matrix shape mismatch")
	ErrDuplicateLabel = errors.New("duplicate matrix label")
	ErrUnsorted       = errors.New("matrix labels not sorted")
	ErrInvalidCell    = errors.New("invalid matrix cell")
)
