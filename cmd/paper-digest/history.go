// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-digest/internal/ledger"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List past runs from the run ledger",
	Long: `History lists recent digest runs, newest first, with their status,
title, and Notion record. Pass a run ID to show one run in full. Use
--format to export runs as JSON or YAML.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().String("root", "", "working directory holding the ledger (default .)")
	historyCmd.Flags().Int("limit", 20, "number of runs to show")
	historyCmd.Flags().String("format", "", "export format: json or yaml (default table)")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if root, _ := cmd.Flags().GetString("root"); root != "" {
		cfg.Pipeline.Root = root
	}
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("format")

	store, err := ledger.Open(cfg.Ledger, cfg.Pipeline.Root)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()

	if len(args) == 1 {
		run, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		printRun(run)
		return nil
	}

	if format != "" {
		return store.Export(ctx, os.Stdout, ledger.Format(format), limit)
	}

	runs, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-8s  %-19s  %-9s  %-8s  %s\n",
		"Run", "Started", "Status", "Elapsed", "Title")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for _, r := range runs {
		title := r.Title
		if title == "" {
			title = r.InputURL
		}
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-8s  %-19s  %-9s  %-8s  %s\n",
			r.ID[:min(8, len(r.ID))], r.StartedAt.Local().Format(time.DateTime), r.Status,
			r.Elapsed().Round(time.Second), title)
	}
	fmt.Fprintf(os.Stdout, "\n%d runs\n", len(runs))
	return nil
}

func printRun(r ledger.Run) {
	fmt.Printf("Run:       %s\n", r.ID)
	fmt.Printf("Input:     %s (%s)\n", r.InputURL, r.Kind)
	fmt.Printf("Status:    %s\n", r.Status)
	if r.Error != "" {
		fmt.Printf("Error:     %s\n", r.Error)
	}
	fmt.Printf("Title:     %s\n", r.Title)
	if r.DigestPath != "" {
		fmt.Printf("Digest:    %s\n", r.DigestPath)
	}
	if r.RecordURL != "" {
		fmt.Printf("Record:    %s\n", r.RecordURL)
	}
	fmt.Printf("Figures:   %d\n", r.FigureCount)
	fmt.Printf("Blocks:    %d (truncated: %t)\n", r.BlockCount, r.Truncated)
	fmt.Printf("Started:   %s\n", r.StartedAt.Local().Format(time.DateTime))
	if !r.FinishedAt.IsZero() {
		fmt.Printf("Elapsed:   %s\n", r.Elapsed().Round(time.Millisecond))
	}
}
