package table

import "errors"

// Sentinel kinds for table errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported table format")
	ErrNoSheet           = errors.New("workbook has no sheet")
)
