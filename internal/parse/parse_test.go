// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmaravilla/scholarpipe/pkg/types"
)

// memRecords is an in-memory Records for run tests.
type memRecords struct {
	papers map[string]*types.Paper
}

func newMemRecords(papers ...types.Paper) *memRecords {
	m := &memRecords{papers: make(map[string]*types.Paper)}
	for _, p := range papers {
		cp := p
		m.papers[p.ID] = &cp
	}
	return m
}

func (m *memRecords) QueryByStatus(_ context.Context, status types.ProcessingStatus, limit int) ([]types.Paper, error) {
	var out []types.Paper
	for _, p := range m.papers {
		if p.Status == status {
			out = append(out, *p)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memRecords) TransitionStatus(_ context.Context, id string, from, to types.ProcessingStatus, reason, localPath string) error {
	p := m.papers[id]
	if p == nil || p.Status != from {
		return assert.AnError
	}
	p.Status = to
	p.FailureReason = reason
	if localPath != "" {
		p.Content.LocalPath = localPath
	}
	return nil
}

func (m *memRecords) UpsertPaper(_ context.Context, p *types.Paper) error {
	cp := *p
	m.papers[p.ID] = &cp
	return nil
}

// stubExtractor replaces the PDF text extractor for the test's duration.
func stubExtractor(t *testing.T, fn func(path string) (string, error)) {
	t.Helper()
	prev := extractText
	extractText = fn
	t.Cleanup(func() { extractText = prev })
}

func downloadedPaper(t *testing.T, id, abstract string) types.Paper {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	return types.Paper{
		ID:      id,
		Status:  types.StatusDownloaded,
		Content: types.Content{Abstract: abstract, LocalPath: path},
	}
}

func TestRunParsesDownloaded(t *testing.T) {
	stubExtractor(t, func(string) (string, error) {
		return "Extracted body text about soil carbon flux.", nil
	})

	p := downloadedPaper(t, "W1", "stored abstract")
	store := newMemRecords(p)

	runner := &Runner{Store: store}
	result, err := runner.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Parsed)
	assert.Equal(t, 0, result.Failed)

	got := store.papers["W1"]
	assert.Equal(t, types.StatusParsed, got.Status)
	assert.True(t, got.Content.FullTextExtracted)
	assert.Equal(t, "stored abstract", got.Content.Abstract, "an existing abstract is kept")

	sidecar := strings.TrimSuffix(p.Content.LocalPath, ".pdf") + ".txt"
	data, err := os.ReadFile(sidecar)
	require.NoError(t, err)
	assert.Contains(t, string(data), "soil carbon flux")
}

func TestRunDerivesMissingAbstract(t *testing.T) {
	stubExtractor(t, func(string) (string, error) {
		return "Opening paragraph of the paper.\n\nSecond paragraph never enters the abstract.", nil
	})

	store := newMemRecords(downloadedPaper(t, "W2", ""))

	runner := &Runner{Store: store}
	_, err := runner.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, "Opening paragraph of the paper.", store.papers["W2"].Content.Abstract)
}

func TestRunExtractionFailure(t *testing.T) {
	stubExtractor(t, func(string) (string, error) {
		return "", errors.New("malformed xref table")
	})

	store := newMemRecords(downloadedPaper(t, "W3", ""))

	runner := &Runner{Store: store}
	result, err := runner.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.True(t, result.HasFailures())
	got := store.papers["W3"]
	assert.Equal(t, types.StatusFailed, got.Status)
	assert.Contains(t, got.FailureReason, "malformed xref table")
}

func TestRunEmptyTextFails(t *testing.T) {
	stubExtractor(t, func(string) (string, error) {
		return "", nil
	})

	store := newMemRecords(downloadedPaper(t, "W4", ""))

	runner := &Runner{Store: store}
	result, err := runner.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, store.papers["W4"].FailureReason, "no text")
}

func TestRunMissingLocalPath(t *testing.T) {
	stubExtractor(t, func(string) (string, error) {
		t.Fatal("extractor must not run without a local path")
		return "", nil
	})

	store := newMemRecords(types.Paper{ID: "W5", Status: types.StatusDownloaded})

	runner := &Runner{Store: store}
	result, err := runner.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, types.StatusFailed, store.papers["W5"].Status)
}

func TestRunPicksUpStalledQueue(t *testing.T) {
	stubExtractor(t, func(string) (string, error) {
		return "recovered text", nil
	})

	stalled := downloadedPaper(t, "W6", "a")
	stalled.Status = types.StatusPendingParse
	store := newMemRecords(stalled)

	runner := &Runner{Store: store}
	result, err := runner.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Parsed)
	assert.Equal(t, types.StatusParsed, store.papers["W6"].Status)
}

func TestDeriveAbstractTruncates(t *testing.T) {
	long := strings.Repeat("x", 5000)
	assert.Len(t, deriveAbstract(long), abstractLimit)
}
