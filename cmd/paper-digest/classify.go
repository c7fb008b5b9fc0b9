// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-digest/internal/pipeline"
	"github.com/pdiddy/paper-digest/pkg/types"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [links...]",
	Short: "Show how links would be handled without fetching them",
	Long: `Classify reports the source kind of each link (arXiv page, document,
social post, publisher page, or local file) and the document URL derived
from it. Nothing is downloaded.`,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more links")
	}

	descs := make([]types.SourceDescriptor, len(args))
	for i, arg := range args {
		descs[i] = pipeline.Describe(arg)
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(descs)
	}

	for _, d := range descs {
		fmt.Fprintf(os.Stdout, "%-12s  %s\n", d.Kind, d.URL)
		if d.DerivedURL != "" {
			fmt.Fprintf(os.Stdout, "%-12s  -> %s\n", "", d.DerivedURL)
		}
		fmt.Fprintf(os.Stdout, "%-12s  %s\n", "", d.Message)
	}
	return nil
}
