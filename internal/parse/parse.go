// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package parse extracts plain text from downloaded PDFs and advances
// papers from downloaded through pending_parse to parsed. The extracted
// text is written next to the PDF as a .txt sidecar; the record keeps the
// flag and, when it had none, an abstract derived from the text.
package parse

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/dmaravilla/scholarpipe/pkg/types"
)

// abstractLimit caps a derived abstract's length in runes.
const abstractLimit = 1500

// Records is the slice of the store the parse stage needs.
type Records interface {
	QueryByStatus(ctx context.Context, status types.ProcessingStatus, limit int) ([]types.Paper, error)
	TransitionStatus(ctx context.Context, id string, from, to types.ProcessingStatus, reason, localPath string) error
	UpsertPaper(ctx context.Context, p *types.Paper) error
}

// BatchResult holds the outcome of a batch parse run.
type BatchResult struct {
	Parsed int
	Failed int
}

// Total returns the total number of papers processed.
func (r BatchResult) Total() int {
	return r.Parsed + r.Failed
}

// HasFailures reports whether any papers failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Runner executes parse batches.
type Runner struct {
	Store Records

	// Out receives progress lines; defaults to io.Discard.
	Out io.Writer
}

// extractText pulls the plain text out of a PDF file. Stubbed in tests so
// they do not need real PDF fixtures.
var extractText = func(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, reader); err != nil {
		return "", fmt.Errorf("reading extracted text: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}

// Run parses up to limit downloaded papers (limit <= 0 means all). Each
// paper is first promoted to pending_parse, then parsed, so an interrupted
// run leaves a queue that the next run picks up. Failures move the paper to
// failed with the reason recorded.
func (r *Runner) Run(ctx context.Context, limit int) (BatchResult, error) {
	out := r.Out
	if out == nil {
		out = io.Discard
	}

	// Promote freshly downloaded papers into the parse queue.
	downloaded, err := r.Store.QueryByStatus(ctx, types.StatusDownloaded, limit)
	if err != nil {
		return BatchResult{}, fmt.Errorf("querying downloaded papers: %w", err)
	}
	for _, p := range downloaded {
		if err := r.Store.TransitionStatus(ctx, p.ID, types.StatusDownloaded, types.StatusPendingParse, "", ""); err != nil {
			fmt.Fprintf(out, "warning: queueing %s: %v\n", p.ID, err)
		}
	}

	pending, err := r.Store.QueryByStatus(ctx, types.StatusPendingParse, limit)
	if err != nil {
		return BatchResult{}, fmt.Errorf("querying parse queue: %w", err)
	}

	var result BatchResult
	for _, p := range pending {
		if err := r.parseOne(ctx, p); err != nil {
			fmt.Fprintf(out, "failed:  %s (%v)\n", p.ID, err)
			if terr := r.Store.TransitionStatus(ctx, p.ID, types.StatusPendingParse, types.StatusFailed, err.Error(), ""); terr != nil {
				fmt.Fprintf(out, "warning: marking %s failed: %v\n", p.ID, terr)
			}
			result.Failed++
			continue
		}
		fmt.Fprintf(out, "parsed: %s\n", p.ID)
		result.Parsed++
	}

	fmt.Fprintf(out, "\nBatch summary: %d parsed, %d failed (total: %d)\n",
		result.Parsed, result.Failed, result.Total())
	return result, nil
}

func (r *Runner) parseOne(ctx context.Context, p types.Paper) error {
	path := p.Content.LocalPath
	if path == "" {
		return fmt.Errorf("%w: no local PDF path", types.ErrValidation)
	}

	text, err := extractText(path)
	if err != nil {
		return err
	}
	if text == "" {
		return fmt.Errorf("%w: PDF yielded no text", types.ErrValidation)
	}

	if err := os.WriteFile(sidecarPath(path), []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing text sidecar: %w", err)
	}

	p.Content.FullTextExtracted = true
	if p.Content.Abstract == "" {
		p.Content.Abstract = deriveAbstract(text)
	}
	if err := r.Store.UpsertPaper(ctx, &p); err != nil {
		return fmt.Errorf("%w: updating record: %v", types.ErrStoreWrite, err)
	}

	return r.Store.TransitionStatus(ctx, p.ID, types.StatusPendingParse, types.StatusParsed, "", "")
}

// sidecarPath maps a PDF path to its extracted-text location.
func sidecarPath(pdfPath string) string {
	return strings.TrimSuffix(pdfPath, ".pdf") + ".txt"
}

// deriveAbstract takes the opening of the extracted text as a stand-in
// abstract for records the sources left without one.
func deriveAbstract(text string) string {
	if i := strings.Index(text, "\n\n"); i > 0 {
		text = text[:i]
	}
	runes := []rune(text)
	if len(runes) > abstractLimit {
		runes = runes[:abstractLimit]
	}
	return strings.TrimSpace(string(runes))
}
