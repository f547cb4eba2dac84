package main

import "errors"

// Sentinel kinds for command errors.
var (
	ErrInconsistent = errors.New("matrix inconsistent with transcripts")
	ErrNoMatrix     = errors.New("no matrix file given")
)
