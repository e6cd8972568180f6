// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dmaravilla/scholarpipe/internal/extract"
	"github.com/dmaravilla/scholarpipe/pkg/types"
)

const defaultModel = "claude-sonnet-4-5"

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract typed entities from abstracts with a Generative AI model",
	Long: `Extract analyzes stored abstracts with the Claude API and produces typed
entities (methods, subjects, metrics, findings) as versioned feature records.
By default only papers with no feature record are processed; with --reprocess,
papers lacking features at the current script version are selected instead,
so bumping the version re-extracts the corpus without touching older results.`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().String("model", "", "AI model identifier (default "+defaultModel+")")
	extractCmd.Flags().String("script-version", "", "feature record version tag (default v1.0)")
	extractCmd.Flags().Int("limit", 0, "papers to process this run (0 means all eligible)")
	extractCmd.Flags().Bool("reprocess", false, "select papers lacking features at the current script version")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	apiKey := secretDefault("anthropic-api-key", viper.GetString("extract.api_key"))
	if apiKey == "" {
		return fmt.Errorf("no Claude API key: add anthropic-api-key to .secrets/ or set extract.api_key in the config file")
	}

	model, _ := cmd.Flags().GetString("model")
	if model == "" {
		model = viper.GetString("extract.model")
	}
	if model == "" {
		model = defaultModel
	}

	scriptVersion, _ := cmd.Flags().GetString("script-version")
	if scriptVersion == "" {
		scriptVersion = viper.GetString("extract.script_version")
	}

	limit, _ := cmd.Flags().GetInt("limit")
	reprocess, _ := cmd.Flags().GetBool("reprocess")

	ctx := cmd.Context()
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	runner := &extract.Runner{
		Store: s,
		Backend: &extract.ClaudeBackend{
			APIKey: apiKey,
			Model:  model,
			Client: &http.Client{Timeout: defaultTimeout},
		},
		Config: types.ExtractConfig{
			AIConfig:      types.AIConfig{Model: model, APIKey: apiKey},
			ScriptVersion: scriptVersion,
		},
		Out: os.Stdout,
	}

	summary, err := runner.Run(ctx, limit, reprocess)
	if err != nil {
		return err
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d paper(s) failed extraction", summary.Failed)
	}
	return nil
}
