// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmaravilla/scholarpipe/internal/parse"
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Extract text from downloaded PDFs",
	Long: `Parse extracts plain text from downloaded PDFs, writing the text next to
each PDF as a .txt file. Papers advance from downloaded through pending_parse
to parsed; records without an abstract get one derived from the opening of
the extracted text. Failures move the paper to failed with the reason.`,
	RunE: runParse,
}

func init() {
	parseCmd.Flags().Int("limit", 0, "papers to process this run (0 means all downloaded)")

	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	ctx := cmd.Context()
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	runner := &parse.Runner{Store: s, Out: os.Stdout}
	result, err := runner.Run(ctx, limit)
	if err != nil {
		return err
	}
	if result.HasFailures() {
		return fmt.Errorf("%d paper(s) failed parsing", result.Failed)
	}
	return nil
}
