// Package config defines run configuration and its loading from defaults,
// an optional YAML file and the environment.
package config

import (
	"context"
	"runtime"

	"github.com/go-playground/validator/v10"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// DataDir holds one transcript file per student.
	DataDir string `koanf:"data_dir" validate:"required"`

	// FileGlob selects transcript files inside DataDir.
	FileGlob string `koanf:"file_glob" validate:"required"`

	// Sheet names the transcript sheet to read from workbooks; empty reads
	// the first one.
	Sheet string `koanf:"sheet"`

	// OutputFile is where the matrix is written; .csv or .xlsx.
	OutputFile string `koanf:"output_file" validate:"required"`

	// WorkerCount sets the number of scoring workers.
	WorkerCount int `koanf:"worker_count" validate:"gte=1"`

	// QueueSize bounds the in-memory job queue.
	QueueSize int `koanf:"queue_size" validate:"gte=1"`

	// Formula picks the scoring strategy: weighted or best.
	Formula string `koanf:"formula" validate:"oneof=weighted best"`

	// ShrinkStep, ShrinkFloor and MinCredit tune the weighted formula.
	ShrinkStep  float64 `koanf:"shrink_step" validate:"gte=0,lte=1"`
	ShrinkFloor float64 `koanf:"shrink_floor" validate:"gt=0,lte=1"`
	MinCredit   float64 `koanf:"min_credit" validate:"gt=0"`

	// Tolerance is the absolute difference verification accepts.
	Tolerance float64 `koanf:"tolerance" validate:"gte=0"`

	// GradeScale replaces the default letter-grade table when non-empty.
	// Values range from -1 to 4; negative values mark exempt grades.
	GradeScale map[string]float64 `koanf:"grade_scale" validate:"dive,keys,required,endkeys,gte=-1,lte=4"`

	// MetricsFile, when set, receives the run metrics in Prometheus text format.
	MetricsFile string `koanf:"metrics_file"`

	// ConvertPrefix limits conversion to workbooks whose name starts with it.
	ConvertPrefix string `koanf:"convert_prefix"`

	// ConvertOutDir receives converted CSV files.
	ConvertOutDir string `koanf:"convert_out_dir" validate:"required"`
}

// New creates a Config with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:      "info",
		LogFormat:     "text",
		DataDir:       "data",
		FileGlob:      "*.xlsx",
		OutputFile:    "student_feature_vectors.csv",
		WorkerCount:   runtime.NumCPU(),
		QueueSize:     256,
		Formula:       "weighted",
		ShrinkStep:    0.1,
		ShrinkFloor:   0.7,
		MinCredit:     1,
		Tolerance:     0.01,
		ConvertOutDir: "clean_data",
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return wrapInvalid(err)
	}
	return nil
}
