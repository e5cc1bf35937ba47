// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ConversionBackend identifies the tool that handles formats the native
// converter does not understand (PDF, Office documents, images).
type ConversionBackend string

const (
	BackendNative     ConversionBackend = "native"
	BackendMarkitdown ConversionBackend = "markitdown"
	BackendDocling    ConversionBackend = "docling"
)

// DoclingConfig holds settings for the docling-serve HTTP backend.
type DoclingConfig struct {
	// URL is the base URL of the docling-serve instance (e.g. "http://localhost:5001").
	URL string `json:"url" yaml:"url" mapstructure:"url"`

	// APIKey is sent as X-Api-Key when set. Falls back to the docling-api-key secret.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Timeout is the HTTP request timeout (default 5m; large PDFs are slow).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// MaxRetries is the number of retries on HTTP 429/503 (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// File enables JSON logging to a rotating file in addition to stderr.
	File string `json:"file,omitempty" yaml:"file,omitempty" mapstructure:"file"`

	MaxSizeMB  int `json:"max_size_mb" yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int `json:"max_backups" yaml:"max_backups" mapstructure:"max_backups"`
}

// HistoryConfig controls the SQLite record of finished batches.
type HistoryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" yaml:"path" mapstructure:"path"`
}

// Config is the full docbatch configuration.
type Config struct {
	// OutputDir is the shared output directory; created if absent.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// OutputExt is the extension of produced files, without the dot (default "md").
	OutputExt string `json:"output_ext" yaml:"output_ext" mapstructure:"output_ext"`

	// Workers is the pool size. Zero means derive it from the CPU count.
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// Accelerated caps the derived pool size when a shared accelerator
	// is the bottleneck. Ignored when Workers is set.
	Accelerated bool `json:"accelerated" yaml:"accelerated" mapstructure:"accelerated"`

	// Backend handles non-native formats.
	Backend ConversionBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Frontmatter prepends a YAML header (source, converted_at) to each output.
	Frontmatter bool `json:"frontmatter" yaml:"frontmatter" mapstructure:"frontmatter"`

	// TaskTimeout bounds a single conversion call. Zero disables it.
	TaskTimeout time.Duration `json:"task_timeout" yaml:"task_timeout" mapstructure:"task_timeout"`

	// BatchTimeout bounds the whole batch. Zero disables it.
	BatchTimeout time.Duration `json:"batch_timeout" yaml:"batch_timeout" mapstructure:"batch_timeout"`

	// SecretsDir holds one file per secret (default ".secrets").
	SecretsDir string `json:"secrets_dir" yaml:"secrets_dir" mapstructure:"secrets_dir"`

	Docling DoclingConfig `json:"docling" yaml:"docling" mapstructure:"docling"`
	Log     LogConfig     `json:"log" yaml:"log" mapstructure:"log"`
	History HistoryConfig `json:"history" yaml:"history" mapstructure:"history"`
}
