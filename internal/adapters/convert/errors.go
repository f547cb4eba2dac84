package convert

import "errors"

// Sentinel kinds for convert errors.
var (
	ErrNoWorkbooks = errors.New("no workbooks to convert")
)
