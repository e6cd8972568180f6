package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmaravilla/scholarpipe/pkg/types"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(types.StoreConfig{
		Backend:    types.BackendSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testPaper(id string, status types.ProcessingStatus) *types.Paper {
	return &types.Paper{
		ID:    id,
		Title: "Soil nitrogen dynamics in alpine meadows",
		Year:  2022,
		DOI:   "10.1000/" + id,
		Authors: []types.Author{
			{Name: "A. Researcher", Affiliation: "Alpine Institute"},
		},
		Journal: types.Journal{Name: "J. Ecology", ISSN: "1234-5678"},
		Impact: types.Impact{
			CitationCount:    12,
			CitationsPerYear: 4.0,
			Classification:   types.ImpactModerate,
		},
		OpenAccess: types.OpenAccess{IsOA: true, PDFURL: "https://example.org/" + id + ".pdf"},
		Content:    types.Content{Abstract: "We measured soil nitrogen."},
		Status:     status,
		Tags:       []string{"ecology"},
	}
}

func TestUpsertAndFindPaper(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := testPaper("W1", types.StatusPendingDownload)
	if err := s.UpsertPaper(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := s.FindPaper(ctx, "W1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("paper not found after upsert")
	}
	if got.Title != p.Title || got.Status != types.StatusPendingDownload {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if len(got.Authors) != 1 || got.Authors[0].Affiliation != "Alpine Institute" {
		t.Errorf("authors not preserved: %+v", got.Authors)
	}

	// Upsert again with updated title; still a single record.
	p.Title = "Updated"
	if err := s.UpsertPaper(ctx, p); err != nil {
		t.Fatal(err)
	}
	all, err := s.AllPapers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("AllPapers returned %d records, want 1", len(all))
	}
	if all[0].Title != "Updated" {
		t.Errorf("title = %q, want %q", all[0].Title, "Updated")
	}
}

func TestFindPaperAbsent(t *testing.T) {
	s := testStore(t)
	got, err := s.FindPaper(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil for absent paper, got %+v", got)
	}
}

func TestQueryByStatus(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, p := range []*types.Paper{
		testPaper("W1", types.StatusPendingDownload),
		testPaper("W2", types.StatusNoPDF),
		testPaper("W3", types.StatusPendingDownload),
	} {
		if err := s.UpsertPaper(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	pending, err := s.QueryByStatus(ctx, types.StatusPendingDownload, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 || pending[0].ID != "W1" || pending[1].ID != "W3" {
		t.Errorf("pending = %v", ids(pending))
	}

	// no_pdf_available records are invisible to pending_download queries.
	for _, p := range pending {
		if p.ID == "W2" {
			t.Error("terminal no_pdf_available paper selected for download")
		}
	}

	limited, err := s.QueryByStatus(ctx, types.StatusPendingDownload, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("limit ignored: got %d", len(limited))
	}
}

func TestTransitionStatus(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.UpsertPaper(ctx, testPaper("W1", types.StatusPendingDownload)); err != nil {
		t.Fatal(err)
	}

	err := s.TransitionStatus(ctx, "W1", types.StatusPendingDownload, types.StatusDownloaded, "", "pdfs/2022/W1.pdf")
	if err != nil {
		t.Fatal(err)
	}

	got, _ := s.FindPaper(ctx, "W1")
	if got.Status != types.StatusDownloaded {
		t.Errorf("status = %s, want downloaded", got.Status)
	}
	if got.Content.LocalPath != "pdfs/2022/W1.pdf" {
		t.Errorf("local path = %q", got.Content.LocalPath)
	}

	// Compare-and-set: the paper is no longer pending_download, so a
	// second transition from that state must fail.
	err = s.TransitionStatus(ctx, "W1", types.StatusPendingDownload, types.StatusDownloaded, "", "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("stale transition error = %v, want ErrInvalidTransition", err)
	}
}

func TestTransitionStatusRejectsBadEdges(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	if err := s.UpsertPaper(ctx, testPaper("W1", types.StatusNoPDF)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		from, to types.ProcessingStatus
	}{
		{"terminal no_pdf", types.StatusNoPDF, types.StatusDownloaded},
		{"terminal parsed", types.StatusParsed, types.StatusPendingParse},
		{"terminal failed", types.StatusFailed, types.StatusPendingDownload},
		{"skipping a stage", types.StatusPendingDownload, types.StatusParsed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.TransitionStatus(ctx, "W1", tt.from, tt.to, "", "")
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("TransitionStatus(%s -> %s) = %v, want ErrInvalidTransition", tt.from, tt.to, err)
			}
		})
	}
}

func TestTransitionStatusFailureReason(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	if err := s.UpsertPaper(ctx, testPaper("W1", types.StatusPendingDownload)); err != nil {
		t.Fatal(err)
	}

	err := s.TransitionStatus(ctx, "W1", types.StatusPendingDownload, types.StatusFailed, "download: not a PDF", "")
	if err != nil {
		t.Fatal(err)
	}
	got, _ := s.FindPaper(ctx, "W1")
	if got.FailureReason != "download: not a PDF" {
		t.Errorf("failure reason = %q", got.FailureReason)
	}
}

func TestUpsertFeaturesIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rec := &types.FeatureRecord{
		PaperID:       "W1",
		ScriptVersion: "v1.0",
		Extractions: []types.Extraction{
			{Class: "method", Text: "spectrophotometry"},
		},
		ExtractionCount: 1,
	}
	if err := s.UpsertFeatures(ctx, rec); err != nil {
		t.Fatal(err)
	}
	// Re-running the same (paper, version) overwrites, never duplicates.
	rec.Extractions = append(rec.Extractions, types.Extraction{Class: "subject", Text: "meadow"})
	rec.ExtractionCount = 2
	if err := s.UpsertFeatures(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.FindFeatures(ctx, "W1", "v1.0")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ExtractionCount != 2 || len(got.Extractions) != 2 {
		t.Errorf("features = %+v", got)
	}
}

func TestFeatureVersionIsolation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	v1 := &types.FeatureRecord{
		PaperID:         "W1",
		ScriptVersion:   "v1.0",
		Extractions:     []types.Extraction{{Class: "method", Text: "old"}},
		ExtractionCount: 1,
	}
	if err := s.UpsertFeatures(ctx, v1); err != nil {
		t.Fatal(err)
	}

	v2 := &types.FeatureRecord{
		PaperID:         "W1",
		ScriptVersion:   "v2.0",
		Extractions:     []types.Extraction{{Class: "method", Text: "new"}, {Class: "metric", Text: "N"}},
		ExtractionCount: 2,
	}
	if err := s.UpsertFeatures(ctx, v2); err != nil {
		t.Fatal(err)
	}

	// The v1 record is untouched by the v2 write.
	gotV1, err := s.FindFeatures(ctx, "W1", "v1.0")
	if err != nil {
		t.Fatal(err)
	}
	if gotV1 == nil || gotV1.ExtractionCount != 1 || gotV1.Extractions[0].Text != "old" {
		t.Errorf("v1 record modified: %+v", gotV1)
	}

	has, err := s.HasFeatures(ctx, "W1", "v2.0")
	if err != nil || !has {
		t.Errorf("HasFeatures(v2.0) = %v, %v", has, err)
	}
	has, err = s.HasFeatures(ctx, "W1", "v3.0")
	if err != nil || has {
		t.Errorf("HasFeatures(v3.0) = %v, %v", has, err)
	}
}

func TestPapersForExtraction(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, p := range []*types.Paper{
		testPaper("W1", types.StatusParsed),
		testPaper("W2", types.StatusParsed),
		testPaper("W3", types.StatusParsed),
	} {
		if err := s.UpsertPaper(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	// W4 has no abstract and is never eligible.
	noAbstract := testPaper("W4", types.StatusNoPDF)
	noAbstract.Content.Abstract = ""
	if err := s.UpsertPaper(ctx, noAbstract); err != nil {
		t.Fatal(err)
	}

	// W1 already extracted at v1.0.
	err := s.UpsertFeatures(ctx, &types.FeatureRecord{PaperID: "W1", ScriptVersion: "v1.0"})
	if err != nil {
		t.Fatal(err)
	}

	// Default mode: only papers with no features at all.
	got, err := s.PapersForExtraction(ctx, "v1.0", 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"W2", "W3"}; !equalIDs(got, want) {
		t.Errorf("default selection = %v, want %v", ids(got), want)
	}

	// Same version with reprocess still excludes W1 (record exists at v1.0).
	got, err = s.PapersForExtraction(ctx, "v1.0", 0, true)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"W2", "W3"}; !equalIDs(got, want) {
		t.Errorf("reprocess same-version selection = %v, want %v", ids(got), want)
	}

	// New version with reprocess admits W1 again.
	got, err = s.PapersForExtraction(ctx, "v2.0", 0, true)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"W1", "W2", "W3"}; !equalIDs(got, want) {
		t.Errorf("reprocess new-version selection = %v, want %v", ids(got), want)
	}
}

func TestAppendSnapshotOrdering(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	if err := s.UpsertPaper(ctx, testPaper("W1", types.StatusPendingDownload)); err != nil {
		t.Fatal(err)
	}

	day := func(d int) time.Time {
		return time.Date(2026, 8, d, 0, 0, 0, 0, time.UTC)
	}

	if err := s.AppendSnapshot(ctx, "W1", types.Observation{Date: day(1), Count: 10}); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendSnapshot(ctx, "W1", types.Observation{Date: day(5), Count: 12}); err != nil {
		t.Fatal(err)
	}
	// Same-date appends are allowed; earlier dates are not.
	if err := s.AppendSnapshot(ctx, "W1", types.Observation{Date: day(5), Count: 12}); err != nil {
		t.Fatal(err)
	}
	err := s.AppendSnapshot(ctx, "W1", types.Observation{Date: day(3), Count: 11})
	if !errors.Is(err, types.ErrValidation) {
		t.Errorf("out-of-order append error = %v, want ErrValidation", err)
	}

	snap, err := s.FindSnapshot(ctx, "W1")
	if err != nil {
		t.Fatal(err)
	}
	if snap == nil || len(snap.Observations) != 3 {
		t.Fatalf("snapshot = %+v", snap)
	}
	for i := 1; i < len(snap.Observations); i++ {
		if snap.Observations[i].Date.Before(snap.Observations[i-1].Date) {
			t.Error("observations not in date order")
		}
	}
}

func TestSetJargonAndScoring(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.UpsertPaper(ctx, testPaper("W1", types.StatusParsed)); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertPaper(ctx, testPaper("W2", types.StatusParsed)); err != nil {
		t.Fatal(err)
	}

	unscored, err := s.PapersForScoring(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(unscored) != 2 {
		t.Fatalf("unscored = %v", ids(unscored))
	}

	score := types.JargonScore{Density: 0.25, WordCount: 4, JargonCount: 1}
	if err := s.SetJargon(ctx, "W1", score); err != nil {
		t.Fatal(err)
	}

	unscored, err = s.PapersForScoring(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(unscored) != 1 || unscored[0].ID != "W2" {
		t.Errorf("unscored after SetJargon = %v", ids(unscored))
	}

	scored, err := s.ScoredPapers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(scored) != 1 || scored[0].Jargon == nil || scored[0].Jargon.Density != 0.25 {
		t.Errorf("scored = %+v", scored)
	}

	if err := s.SetJargon(ctx, "missing", score); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetJargon(missing) = %v, want ErrNotFound", err)
	}
}

func TestCounts(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, p := range []*types.Paper{
		testPaper("W1", types.StatusPendingDownload),
		testPaper("W2", types.StatusNoPDF),
	} {
		if err := s.UpsertPaper(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.UpsertFeatures(ctx, &types.FeatureRecord{PaperID: "W1", ScriptVersion: "v1.0"}); err != nil {
		t.Fatal(err)
	}

	c, err := s.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c.Papers != 2 || c.WithAbstract != 2 || c.Features != 1 {
		t.Errorf("counts = %+v", c)
	}
	if c.ByStatus[types.StatusPendingDownload] != 1 || c.ByStatus[types.StatusNoPDF] != 1 {
		t.Errorf("by status = %v", c.ByStatus)
	}
}

func ids(papers []types.Paper) []string {
	out := make([]string, len(papers))
	for i, p := range papers {
		out[i] = p.ID
	}
	return out
}

func equalIDs(papers []types.Paper, want []string) bool {
	got := ids(papers)
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
