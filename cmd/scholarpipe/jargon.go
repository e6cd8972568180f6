// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dmaravilla/scholarpipe/internal/jargon"
)

var jargonCmd = &cobra.Command{
	Use:   "jargon",
	Short: "Score abstracts for jargon density against a reference vocabulary",
	Long: `Jargon tokenizes each stored abstract and computes the fraction of tokens
absent from a reference vocabulary, recording the density, token counts, and
the most frequent out-of-vocabulary terms on each paper. Scoring is pure and
deterministic: re-running over the same abstracts produces identical scores.

With --report, already-scored papers are summarized as average density per
impact classification instead of scoring anything new.`,
	RunE: runJargon,
}

func init() {
	jargonCmd.Flags().String("vocab", "", "reference word list, one word per line")
	jargonCmd.Flags().Int("min-token-len", 0, "minimum token length to count (default 3)")
	jargonCmd.Flags().Int("limit", 0, "papers to score this run (0 means all unscored)")
	jargonCmd.Flags().Bool("report", false, "print average density by impact classification")

	rootCmd.AddCommand(jargonCmd)
}

func runJargon(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	report, _ := cmd.Flags().GetBool("report")
	if report {
		return jargon.ReportByImpact(ctx, s, os.Stdout)
	}

	vocabPath, _ := cmd.Flags().GetString("vocab")
	if vocabPath == "" {
		vocabPath = viper.GetString("jargon.vocab_path")
	}
	if vocabPath == "" {
		return fmt.Errorf("provide a reference vocabulary via --vocab or jargon.vocab_path")
	}

	vocab, err := jargon.Load(vocabPath)
	if err != nil {
		return err
	}

	minTokenLen, _ := cmd.Flags().GetInt("min-token-len")
	limit, _ := cmd.Flags().GetInt("limit")

	scorer := jargon.Scorer{Vocab: vocab, MinTokenLen: minTokenLen}
	summary, err := jargon.ScoreAll(ctx, s, scorer, limit, os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d paper(s) failed scoring", summary.Failed)
	}
	return nil
}
