// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config binds docbatch settings from the config file, the
// environment and command-line flags into a types.Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/docbatch/pkg/types"
)

const (
	// Name is the config file base name (docbatch.yaml).
	Name = "docbatch"

	// EnvPrefix prefixes environment overrides, e.g. DOCBATCH_OUTPUT_DIR or
	// DOCBATCH_DOCLING_URL.
	EnvPrefix = "DOCBATCH"

	// acceleratedCap bounds the derived pool size when tasks share one
	// accelerator.
	acceleratedCap = 4
)

// SetDefaults registers every key with its default so that environment
// overrides apply even when no config file exists.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("output_dir", "documents")
	v.SetDefault("output_ext", "md")
	v.SetDefault("workers", 0)
	v.SetDefault("accelerated", false)
	v.SetDefault("backend", string(types.BackendNative))
	v.SetDefault("frontmatter", false)
	v.SetDefault("task_timeout", 10*time.Minute)
	v.SetDefault("batch_timeout", time.Duration(0))
	v.SetDefault("secrets_dir", ".secrets")

	v.SetDefault("docling.url", "http://localhost:5001")
	v.SetDefault("docling.api_key", "")
	v.SetDefault("docling.timeout", 5*time.Minute)
	v.SetDefault("docling.max_retries", 3)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", filepath.Join(".docbatch", "history.db"))
}

// Init prepares v to read docbatch.yaml from cfgFile, or from the working
// directory and ~/.config/docbatch/ when cfgFile is empty. It returns the
// config file used, or "" when none was found.
func Init(v *viper.Viper, cfgFile string) (string, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", Name))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			return "", nil
		}
		return "", fmt.Errorf("reading config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.OutputExt = strings.TrimPrefix(strings.TrimSpace(cfg.OutputExt), ".")
	cfg.Backend = types.ConversionBackend(strings.ToLower(string(cfg.Backend)))

	if err := Validate(cfg); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg for values no component can run with.
func Validate(cfg types.Config) error {
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return fmt.Errorf("invalid config: output_dir is required")
	}
	if strings.ContainsAny(cfg.OutputExt, `/\`) {
		return fmt.Errorf("invalid config: output_ext %q must not contain a path separator", cfg.OutputExt)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("invalid config: workers must be >= 0, got %d", cfg.Workers)
	}
	switch cfg.Backend {
	case types.BackendNative, types.BackendMarkitdown:
	case types.BackendDocling:
		if strings.TrimSpace(cfg.Docling.URL) == "" {
			return fmt.Errorf("invalid config: docling.url is required for the docling backend")
		}
	default:
		return fmt.Errorf("invalid config: unknown backend %q (want native, markitdown or docling)", cfg.Backend)
	}
	if cfg.TaskTimeout < 0 || cfg.BatchTimeout < 0 || cfg.Docling.Timeout < 0 {
		return fmt.Errorf("invalid config: timeouts must not be negative")
	}
	if cfg.Docling.MaxRetries < 0 {
		return fmt.Errorf("invalid config: docling.max_retries must be >= 0")
	}
	if cfg.History.Enabled && strings.TrimSpace(cfg.History.Path) == "" {
		return fmt.Errorf("invalid config: history.path is required when history is enabled")
	}
	return nil
}

// ResolveWorkers returns the pool size: an explicit Workers value wins,
// otherwise the CPU count, capped when Accelerated is set. The result is
// at least 1.
func ResolveWorkers(cfg types.Config, cpus int) int {
	if cfg.Workers > 0 {
		return cfg.Workers
	}
	n := max(cpus, 1)
	if cfg.Accelerated {
		n = min(n, acceleratedCap)
	}
	return n
}
