// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jargon

import (
	"context"
	"fmt"
	"io"

	"github.com/dmaravilla/scholarpipe/pkg/types"
)

// RecordSource is the slice of the record store the scoring stage consumes.
type RecordSource interface {
	// PapersForScoring returns papers with a non-empty abstract and no
	// jargon score yet, in identifier order.
	PapersForScoring(ctx context.Context, limit int) ([]types.Paper, error)

	// SetJargon writes a score onto an existing paper record.
	SetJargon(ctx context.Context, paperID string, score types.JargonScore) error

	// ScoredPapers returns papers that already carry a jargon score.
	ScoredPapers(ctx context.Context) ([]types.Paper, error)
}

// BatchSummary holds counts from one scoring run.
type BatchSummary struct {
	Scored int
	Failed int
}

// ScoreAll scores every unscored abstract (up to limit; 0 means no limit)
// and writes the results back. A store write failure skips that paper and
// the batch continues.
func ScoreAll(ctx context.Context, src RecordSource, scorer Scorer, limit int, w io.Writer) (BatchSummary, error) {
	papers, err := src.PapersForScoring(ctx, limit)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("selecting papers: %w", err)
	}

	var summary BatchSummary
	for _, p := range papers {
		score := scorer.Score(p.Content.Abstract)
		if err := src.SetJargon(ctx, p.ID, score); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", p.ID, err)
			summary.Failed++
			continue
		}
		fmt.Fprintf(w, "scored  %s (density %.4f, %d/%d words)\n",
			p.ID, score.Density, score.JargonCount, score.WordCount)
		summary.Scored++
	}

	fmt.Fprintf(w, "\nscored: %d, failed: %d\n", summary.Scored, summary.Failed)
	return summary, nil
}

// ReportByImpact prints average jargon density grouped by impact
// classification. With fewer than five scored papers it prints a notice
// instead of a misleading average.
func ReportByImpact(ctx context.Context, src RecordSource, w io.Writer) error {
	papers, err := src.ScoredPapers(ctx)
	if err != nil {
		return fmt.Errorf("loading scored papers: %w", err)
	}

	if len(papers) < 5 {
		fmt.Fprintln(w, "not enough scored papers for a breakdown yet")
		return nil
	}

	sums := map[string]float64{}
	counts := map[string]int{}
	for _, p := range papers {
		if p.Jargon == nil {
			continue
		}
		cls := p.Impact.Classification
		sums[cls] += p.Jargon.Density
		counts[cls]++
	}

	fmt.Fprintln(w, "jargon by impact level:")
	for _, cls := range []string{types.ImpactHigh, types.ImpactModerate, types.ImpactLow} {
		if counts[cls] == 0 {
			continue
		}
		avg := sums[cls] / float64(counts[cls])
		fmt.Fprintf(w, "  %-8s %.1f%% avg jargon (%d papers)\n", cls, avg*100, counts[cls])
	}
	return nil
}
