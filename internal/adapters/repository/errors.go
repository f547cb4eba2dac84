package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound         = errors.New("student not found")
	ErrDuplicateStudent = errors.New("student already stored")
)
