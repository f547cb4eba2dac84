// Package model contains domain models passed between layers.
package model

// RawRecord is one transcript line as read from a source table.
type RawRecord struct {
	CourseCode  string  // raw "Ders Kodu" cell
	LetterGrade *string // raw "Harf Notu" cell; nil when the cell is empty
	Credit      float64 // "Kredi"; 0 when missing or unparseable
}

// Transcript is every raw record found for one student.
type Transcript struct {
	StudentID string
	Source    string // path the records were read from
	Records   []RawRecord
}

// AttemptSummary collapses all valid attempts of one normalized course.
type AttemptSummary struct {
	StudentID string
	Course    string
	BestGrade float64
	Attempts  int
	Credit    float64
}

// ScoredEntry is the final weighted score of a (student, course) pair.
type ScoredEntry struct {
	StudentID string
	Course    string
	Score     float64
}

// StudentStats counts what happened to a transcript's rows while scoring.
type StudentStats struct {
	Rows       int
	Numeric    int
	Exempt     int
	NoValue    int
	NoCourse   int
	Courses    int      // scored courses
	ExemptOnly []string // courses whose only grades were exempt
}

// Job asks a worker to load and score one student source file.
type Job struct {
	StudentID string
	Path      string
}

// Skip records a student dropped from the run and why.
type Skip struct {
	StudentID string
	Path      string
	Err       error
}

// Grade is a convenience for building RawRecord.LetterGrade literals.
func Grade(s string) *string { return &s }
