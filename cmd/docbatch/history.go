// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docbatch/internal/history"
	"github.com/pdiddy/docbatch/internal/report"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently finished batches",
	Long: `History lists batches recorded by convert, newest first. Use
"history show <batch-id>" to print the full report of one batch.`,
	Args: cobra.NoArgs,
	RunE: runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <batch-id>",
	Short: "Print the report of a recorded batch",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if runs == nil {
			runs = []history.Run{}
		}
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No batches recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-20s  %5s  %5s  %5s  %s\n", "Batch", "Started", "Total", "OK", "Fail", "Output")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-20s  %5d  %5d  %5d  %s\n",
			r.BatchID, r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Total, r.SuccessCount, r.FailureCount, r.OutputDir)
	}
	fmt.Fprintf(w, "\n%d batches\n", len(runs))
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	formatFlag, _ := cmd.Flags().GetString("format")
	format, err := report.ParseFormat(formatFlag)
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.History.Path); err != nil {
		return fmt.Errorf("no history at %s: %w", cfg.History.Path, err)
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	rep, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return report.Write(cmd.OutOrStdout(), rep, format)
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "maximum number of batches to list")
	historyCmd.Flags().Bool("json", false, "output as JSON")
	historyShowCmd.Flags().StringP("format", "f", "text", "report format: "+report.FormatNames())

	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}
