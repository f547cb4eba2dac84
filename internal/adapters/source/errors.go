package source

import "errors"

// Sentinel kinds for source errors.
var (
	ErrNoInputFiles     = errors.New("no input files found")
	ErrStudentSkipped   = errors.New("student skipped")
	ErrMissingColumns   = errors.New("required columns missing")
	ErrUnreadableSource = errors.New("unreadable source")
)
