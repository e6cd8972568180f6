// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download fetches open-access PDFs for papers awaiting retrieval
// and advances them through the processing state machine. Each paper is
// committed independently: one bad URL never blocks the rest of the batch.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmaravilla/scholarpipe/internal/httputil"
	"github.com/dmaravilla/scholarpipe/pkg/types"
)

// Queue is the slice of the store the download stage needs.
type Queue interface {
	QueryByStatus(ctx context.Context, status types.ProcessingStatus, limit int) ([]types.Paper, error)
	TransitionStatus(ctx context.Context, id string, from, to types.ProcessingStatus, reason, localPath string) error
}

// BatchResult holds the outcome of a batch download run.
type BatchResult struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// Total returns the total number of papers processed.
func (r BatchResult) Total() int {
	return r.Downloaded + r.Skipped + r.Failed
}

// HasFailures reports whether any downloads failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Runner executes download batches.
type Runner struct {
	Store  Queue
	Client *http.Client
	Config types.DownloadConfig

	// Out receives progress lines; defaults to io.Discard.
	Out io.Writer
}

// Run downloads PDFs for up to limit papers in the pending_download state
// (limit <= 0 means all). Successes move to downloaded with the local path
// recorded; failures move to failed with the reason. Papers whose PDF is
// already on disk are skipped but still advanced.
func (r *Runner) Run(ctx context.Context, limit int) (BatchResult, error) {
	out := r.Out
	if out == nil {
		out = io.Discard
	}

	papers, err := r.Store.QueryByStatus(ctx, types.StatusPendingDownload, limit)
	if err != nil {
		return BatchResult{}, fmt.Errorf("querying pending papers: %w", err)
	}

	var result BatchResult
	for i, p := range papers {
		if i > 0 && r.Config.Delay > 0 {
			select {
			case <-time.After(r.Config.Delay):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}

		dest := r.pdfPath(p)

		if _, statErr := os.Stat(dest); statErr == nil {
			fmt.Fprintf(out, "skipped: %s (already on disk)\n", p.ID)
			if err := r.Store.TransitionStatus(ctx, p.ID, types.StatusPendingDownload, types.StatusDownloaded, "", dest); err != nil {
				fmt.Fprintf(out, "warning: advancing %s: %v\n", p.ID, err)
			}
			result.Skipped++
			continue
		}

		fmt.Fprintf(out, "downloading: %s\n", p.ID)
		if err := r.downloadPDF(ctx, p.OpenAccess.PDFURL, dest); err != nil {
			fmt.Fprintf(out, "failed:  %s (%v)\n", p.ID, err)
			if terr := r.Store.TransitionStatus(ctx, p.ID, types.StatusPendingDownload, types.StatusFailed, err.Error(), ""); terr != nil {
				fmt.Fprintf(out, "warning: marking %s failed: %v\n", p.ID, terr)
			}
			result.Failed++
			continue
		}

		if err := r.Store.TransitionStatus(ctx, p.ID, types.StatusPendingDownload, types.StatusDownloaded, "", dest); err != nil {
			fmt.Fprintf(out, "warning: advancing %s: %v\n", p.ID, err)
			result.Failed++
			continue
		}
		result.Downloaded++
	}

	fmt.Fprintf(out, "\nBatch summary: %d downloaded, %d skipped, %d failed (total: %d)\n",
		result.Downloaded, result.Skipped, result.Failed, result.Total())
	return result, nil
}

// pdfPath builds the on-disk location for a paper's PDF, partitioned by
// publication year.
func (r *Runner) pdfPath(p types.Paper) string {
	year := "unknown"
	if p.Year > 0 {
		year = fmt.Sprintf("%d", p.Year)
	}
	return filepath.Join(r.Config.PDFDir, year, SafeFileName(p.ID)+".pdf")
}

// SafeFileName turns a paper ID into a filesystem-safe name. URL-style IDs
// keep only their final path segment.
func SafeFileName(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	var b strings.Builder
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '.', c == '-', c == '_':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "paper"
	}
	return b.String()
}

// downloadPDF fetches url to destPath using a temporary file so a partial
// download never leaves a truncated PDF at the final path.
func (r *Runner) downloadPDF(ctx context.Context, url, destPath string) error {
	if url == "" {
		return fmt.Errorf("%w: no PDF URL", types.ErrValidation)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", r.Config.UserAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := httputil.DoWithRetry(ctx, r.Client, req, 0)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".download-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Check the magic bytes before committing: hosts often serve an HTML
	// landing page with a 200 where the PDF should be.
	header := make([]byte, 5)
	n, readErr := io.ReadFull(resp.Body, header)
	if readErr != nil && readErr != io.ErrUnexpectedEOF {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("reading response: %w", readErr)
	}
	if string(header[:n]) != "%PDF-" {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: response is not a PDF", types.ErrValidation)
	}

	if _, err := tmpFile.Write(header[:n]); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", err)
	}
	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
