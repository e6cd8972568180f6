// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract pulls typed entities out of paper abstracts with a
// Generative AI backend and stores them as versioned feature records.
// Feature records are keyed by (paper, script version): re-running under a
// new version extracts again without touching earlier results, re-running
// under the same version overwrites idempotently.
package extract

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/dmaravilla/scholarpipe/pkg/types"
)

// validClasses is the set of accepted extraction classes.
var validClasses = map[string]bool{
	"method":  true,
	"subject": true,
	"metric":  true,
	"finding": true,
}

// AIBackend abstracts the Generative AI API so tests can supply a mock.
// Each implementation handles a single abstract and returns the parsed
// response.
type AIBackend interface {
	Extract(ctx context.Context, abstract string) (AIResponse, error)
}

// AIResponse is the structured response from the AI backend for one abstract.
type AIResponse struct {
	Extractions     []AIExtraction `json:"extractions" yaml:"extractions"`
	ExtractionCount int            `json:"extraction_count" yaml:"extraction_count"`
}

// AIExtraction is a single entity as returned by the AI backend.
type AIExtraction struct {
	Class      string            `json:"class" yaml:"class"`
	Text       string            `json:"text" yaml:"text"`
	Attributes map[string]string `json:"attributes" yaml:"attributes"`
}

// BatchSummary holds counts from a batch extraction run.
type BatchSummary struct {
	Extracted int
	Skipped   int
	Failed    int
}

// Total returns the number of papers processed.
func (s BatchSummary) Total() int {
	return s.Extracted + s.Skipped + s.Failed
}

// HasFailures reports whether any papers failed.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

// Features is the slice of the store the extraction stage needs.
type Features interface {
	PapersForExtraction(ctx context.Context, version string, limit int, reprocess bool) ([]types.Paper, error)
	UpsertFeatures(ctx context.Context, rec *types.FeatureRecord) error
}

// Runner executes extraction batches.
type Runner struct {
	Store   Features
	Backend AIBackend
	Config  types.ExtractConfig

	// Out receives progress lines; defaults to io.Discard.
	Out io.Writer
}

// Run extracts entities for up to limit papers that have no feature record
// yet (limit <= 0 means all). With reprocess set, papers are selected when
// they lack features at the configured script version, so a version bump
// re-extracts the corpus without disturbing records from earlier versions.
// Papers without an abstract are skipped. A failed or invalid response
// fails that paper only; its record store state is left untouched.
func (r *Runner) Run(ctx context.Context, limit int, reprocess bool) (BatchSummary, error) {
	out := r.Out
	if out == nil {
		out = io.Discard
	}

	version := r.Config.ScriptVersion
	if version == "" {
		version = "v1.0"
	}

	papers, err := r.Store.PapersForExtraction(ctx, version, limit, reprocess)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("selecting papers: %w", err)
	}

	maxRetries := r.Config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var summary BatchSummary
	for _, p := range papers {
		if p.Content.Abstract == "" {
			fmt.Fprintf(out, "skipped %s (no abstract)\n", p.ID)
			summary.Skipped++
			continue
		}

		resp, err := callWithRetry(ctx, r.Backend, p.Content.Abstract, maxRetries)
		if err != nil {
			fmt.Fprintf(out, "failed  %s: %v\n", p.ID, err)
			summary.Failed++
			continue
		}

		rec, err := buildRecord(p.ID, version, resp)
		if err != nil {
			fmt.Fprintf(out, "failed  %s: %v\n", p.ID, err)
			summary.Failed++
			continue
		}

		if err := r.Store.UpsertFeatures(ctx, rec); err != nil {
			fmt.Fprintf(out, "failed  %s: write error: %v\n", p.ID, err)
			summary.Failed++
			continue
		}

		fmt.Fprintf(out, "extracted %s (%d entities)\n", p.ID, rec.ExtractionCount)
		summary.Extracted++
	}

	fmt.Fprintf(out, "\nBatch summary: %d extracted, %d skipped, %d failed (total: %d)\n",
		summary.Extracted, summary.Skipped, summary.Failed, summary.Total())
	return summary, nil
}

// buildRecord validates an AI response and converts it to a feature record.
// The declared extraction count and the actual list must agree, and every
// entity needs a known class and non-empty text.
func buildRecord(paperID, version string, resp AIResponse) (*types.FeatureRecord, error) {
	if resp.ExtractionCount < 0 {
		return nil, fmt.Errorf("%w: negative extraction count %d", types.ErrValidation, resp.ExtractionCount)
	}
	if resp.ExtractionCount != len(resp.Extractions) {
		return nil, fmt.Errorf("%w: extraction count %d does not match %d entities",
			types.ErrValidation, resp.ExtractionCount, len(resp.Extractions))
	}

	extractions := make([]types.Extraction, 0, len(resp.Extractions))
	for i, e := range resp.Extractions {
		if !validClasses[e.Class] {
			return nil, fmt.Errorf("%w: entity %d has unknown class %q", types.ErrValidation, i, e.Class)
		}
		if e.Text == "" {
			return nil, fmt.Errorf("%w: entity %d has empty text", types.ErrValidation, i)
		}
		extractions = append(extractions, types.Extraction{
			Class:      e.Class,
			Text:       e.Text,
			Attributes: e.Attributes,
		})
	}

	return &types.FeatureRecord{
		PaperID:         paperID,
		ScriptVersion:   version,
		Extractions:     extractions,
		ExtractionCount: len(extractions),
	}, nil
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// callWithRetry calls the AI backend with exponential backoff.
func callWithRetry(ctx context.Context, backend AIBackend, abstract string, maxRetries int) (AIResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			select {
			case <-ctx.Done():
				return AIResponse{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := backend.Extract(ctx, abstract)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return AIResponse{}, fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}
