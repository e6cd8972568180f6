// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored paper records to YAML or JSON",
	Long: `Export writes every stored paper record, including impact metrics and
jargon scores, to a single file for analysis outside the pipeline.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("format", "yaml", "output format: yaml or json")
	exportCmd.Flags().String("out", "", "output file (default papers.yaml or papers.json)")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "yaml" && format != "json" {
		return fmt.Errorf("unknown format %q: use yaml or json", format)
	}

	outPath, _ := cmd.Flags().GetString("out")
	if outPath == "" {
		outPath = "papers." + format
	}

	ctx := cmd.Context()
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	papers, err := s.AllPapers(ctx)
	if err != nil {
		return fmt.Errorf("reading records: %w", err)
	}

	var data []byte
	switch format {
	case "yaml":
		data, err = yaml.Marshal(papers)
	case "json":
		data, err = json.MarshalIndent(papers, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshaling records: %w", err)
	}

	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}

	fmt.Printf("Exported %d paper(s) to %s\n", len(papers), outPath)
	return nil
}
