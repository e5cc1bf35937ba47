// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the docbatch CLI.
package main

import (
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/docbatch/internal/config"
	"github.com/pdiddy/docbatch/internal/logging"
	"github.com/pdiddy/docbatch/internal/secrets"
	"github.com/pdiddy/docbatch/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is the resolved configuration, loaded before any subcommand runs.
	cfg types.Config

	// loadedSecrets holds credentials read from cfg.SecretsDir at startup.
	loadedSecrets secrets.Secrets

	logger    = slog.Default()
	logCloser io.Closer
)

// secretDefault returns value when set, or the secret stored under key.
func secretDefault(key, value string) string {
	if value != "" {
		return value
	}
	return loadedSecrets.Get(key)
}

// rootCmd is the base command for the docbatch CLI.
var rootCmd = &cobra.Command{
	Use:   "docbatch",
	Short: "Convert batches of documents to Markdown concurrently",
	Long: `docbatch converts many documents at once into text files in a shared
output directory. Files are processed by a bounded pool of workers, every
file gets a unique output name, and a failure in one file never affects
the others. A report of successes and failures is printed when the batch
finishes.

Plain text, Markdown, CSV and HTML are converted natively. PDF and Office
formats go to the configured backend: markitdown (container) or docling
(HTTP).`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./docbatch.yaml or ~/.config/docbatch/docbatch.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-file", "", "also write JSON logs to this file (rotated)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))
}

// setup loads configuration, logging and secrets in that order.
func setup(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	used, err := config.Init(viper.GetViper(), cfgFile)
	if err != nil {
		return err
	}

	cfg, err = config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	l, closer, err := logging.New(os.Stderr, cfg.Log)
	if err != nil {
		return err
	}
	logger, logCloser = l, closer
	slog.SetDefault(logger)

	if used != "" {
		logger.Debug("using config file", slog.String("path", used))
	}

	s, err := secrets.Load(cfg.SecretsDir)
	if err != nil {
		return err
	}
	loadedSecrets = s
	if len(s) > 0 {
		keys := make([]string, 0, len(s))
		for k := range s {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		logger.Debug("loaded secrets", slog.Any("keys", keys))
	}
	return nil
}

func main() {
	err := rootCmd.Execute()
	if logCloser != nil {
		_ = logCloser.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}
