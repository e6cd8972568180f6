// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmaravilla/scholarpipe/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show corpus progress through the pipeline",
	Long: `Status counts stored papers by processing state, plus how many carry
extracted features and jargon scores, so a glance shows where the corpus
stands and which stage to run next.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	counts, err := s.Counts(ctx)
	if err != nil {
		return fmt.Errorf("counting records: %w", err)
	}

	fmt.Printf("Papers: %d (%d with abstract)\n", counts.Papers, counts.WithAbstract)
	for _, status := range types.AllStatuses {
		fmt.Printf("  %-18s %d\n", status, counts.ByStatus[status])
	}
	fmt.Printf("Feature records:    %d\n", counts.Features)
	fmt.Printf("Citation snapshots: %d\n", counts.Snapshots)
	fmt.Printf("Jargon scored:      %d\n", counts.JargonScored)
	return nil
}
