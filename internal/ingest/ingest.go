// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest discovers candidate papers from OpenAlex, enriches them
// with Crossref metadata and Unpaywall open-access status, and writes the
// merged records to the store. Ingestion is resumable: paging is driven by
// server-issued cursors, records are committed one at a time, and re-running
// over already-stored papers only appends citation snapshots.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmaravilla/scholarpipe/pkg/types"
)

// RecordSink is the slice of the store that ingestion needs.
type RecordSink interface {
	FindPaper(ctx context.Context, id string) (*types.Paper, error)
	UpsertPaper(ctx context.Context, p *types.Paper) error
	AppendSnapshot(ctx context.Context, paperID string, obs types.Observation) error
	RecordIngestRun(ctx context.Context, run types.IngestRun) error
}

// Summary reports the outcome of one ingestion run.
type Summary struct {
	Fetched    int
	New        int
	Skipped    int
	Failed     int
	NextCursor string
}

// Runner executes ingestion runs against one store and HTTP client.
type Runner struct {
	Store  RecordSink
	Client *http.Client
	Config types.IngestConfig

	// Out receives progress lines; defaults to io.Discard.
	Out io.Writer
}

// now is stubbed in tests.
var now = time.Now

// Run fetches pages of works starting from cfg.Cursor, merges each work with
// its secondary-source lookups, and commits the result before moving on. A
// primary-source failure aborts the run but keeps everything committed so
// far; secondary-source failures degrade that one record and are reported as
// warnings. The returned Summary always carries the cursor to resume from.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	out := r.Out
	if out == nil {
		out = io.Discard
	}

	started := now()
	cursor := r.Config.Cursor
	if cursor == "" {
		cursor = startCursor
	}

	pages := r.Config.MaxPages
	if pages <= 0 {
		pages = 1
	}

	var sum Summary
	sum.NextCursor = cursor

	var runErr error
	for page := 0; page < pages; page++ {
		batch, err := FetchPage(ctx, r.Client, r.Config, cursor)
		if err != nil {
			runErr = fmt.Errorf("fetching page %d: %w", page+1, err)
			break
		}

		fmt.Fprintf(out, "page %d: %d works (total %d)\n", page+1, len(batch.Works), batch.Total)

		for _, work := range batch.Works {
			sum.Fetched++
			if err := r.ingestWork(ctx, work, &sum, out); err != nil {
				sum.Failed++
				fmt.Fprintf(out, "failed %s: %v\n", work.ID, err)
			}
		}

		cursor = batch.NextCursor
		sum.NextCursor = cursor
		if cursor == "" {
			break
		}
	}

	run := types.IngestRun{
		ID:       uuid.NewString(),
		Started:  started,
		Finished: now(),
		Cursor:   sum.NextCursor,
		Fetched:  sum.Fetched,
		New:      sum.New,
		Skipped:  sum.Skipped,
		Failed:   sum.Failed,
	}
	if err := r.Store.RecordIngestRun(ctx, run); err != nil {
		fmt.Fprintf(out, "warning: recording run: %v\n", err)
	}

	fmt.Fprintf(out, "ingested %d new, %d skipped, %d failed; next cursor %q\n",
		sum.New, sum.Skipped, sum.Failed, sum.NextCursor)
	return sum, runErr
}

// ingestWork commits one work. Existing papers are not rewritten; they get a
// fresh citation observation instead, so repeated runs over the same topic
// build up citation history rather than churning records.
func (r *Runner) ingestWork(ctx context.Context, work Work, sum *Summary, out io.Writer) error {
	id := work.ID
	if id == "" {
		id = NormalizeDOI(work.DOI)
	}
	if id == "" {
		return fmt.Errorf("%w: work has neither ID nor DOI", types.ErrValidation)
	}

	existing, err := r.Store.FindPaper(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: looking up %s: %v", types.ErrStoreWrite, id, err)
	}

	obs := types.Observation{Date: now().UTC(), Count: work.CitedByCount}

	if existing != nil {
		sum.Skipped++
		if err := r.Store.AppendSnapshot(ctx, id, obs); err != nil {
			fmt.Fprintf(out, "warning: snapshot for %s: %v\n", id, err)
		}
		return nil
	}

	doi := NormalizeDOI(work.DOI)

	var meta CrossrefMeta
	if doi != "" {
		meta, err = LookupCrossref(ctx, r.Client, doi, r.Config)
		if err != nil {
			fmt.Fprintf(out, "warning: crossref %s: %v\n", doi, err)
		}
	}

	var oa OAInfo
	if doi != "" {
		oa, err = LookupOAStatus(ctx, r.Client, doi, r.Config)
		if err != nil {
			fmt.Fprintf(out, "warning: unpaywall %s: %v\n", doi, err)
		}
	}

	paper := BuildPaper(work, meta, oa)
	if err := r.Store.UpsertPaper(ctx, paper); err != nil {
		return fmt.Errorf("%w: storing %s: %v", types.ErrStoreWrite, id, err)
	}
	if err := r.Store.AppendSnapshot(ctx, paper.ID, obs); err != nil {
		fmt.Fprintf(out, "warning: snapshot for %s: %v\n", paper.ID, err)
	}

	sum.New++
	return nil
}
