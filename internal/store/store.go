// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists paper records, citation snapshots, and extracted
// feature records. Two backends implement the same Store interface: MongoDB
// for the shared document store and SQLite for local single-machine runs.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmaravilla/scholarpipe/pkg/types"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrInvalidTransition is returned when a status change is not in the
// state machine's edge set or the record is not in the expected state.
var ErrInvalidTransition = errors.New("invalid status transition")

// Store is the persistence surface consumed by the pipeline stages. Every
// record write is a single atomic upsert: a failed write never leaves a
// half-written record behind.
type Store interface {
	// UpsertPaper inserts or replaces the full paper record keyed by ID.
	UpsertPaper(ctx context.Context, p *types.Paper) error

	// FindPaper returns the paper with the given ID, or nil when absent.
	FindPaper(ctx context.Context, id string) (*types.Paper, error)

	// QueryByStatus returns up to limit papers in the given status, in
	// identifier order. limit <= 0 means no limit.
	QueryByStatus(ctx context.Context, status types.ProcessingStatus, limit int) ([]types.Paper, error)

	// TransitionStatus moves a paper from one status to another as a
	// compare-and-set: it succeeds only when the stored status still
	// equals from and the edge is allowed. reason and localPath are
	// recorded when non-empty.
	TransitionStatus(ctx context.Context, id string, from, to types.ProcessingStatus, reason, localPath string) error

	// PapersForExtraction returns papers with a non-empty abstract that
	// are eligible for entity extraction at the given script version.
	// Without reprocess, only papers with no feature record at all are
	// eligible; with reprocess, papers whose features exist only under
	// other versions become eligible too. Identifier order.
	PapersForExtraction(ctx context.Context, version string, limit int, reprocess bool) ([]types.Paper, error)

	// PapersForScoring returns papers with a non-empty abstract and no
	// jargon score, in identifier order. limit <= 0 means no limit.
	PapersForScoring(ctx context.Context, limit int) ([]types.Paper, error)

	// ScoredPapers returns papers that carry a jargon score.
	ScoredPapers(ctx context.Context) ([]types.Paper, error)

	// SetJargon writes a jargon score onto an existing paper.
	SetJargon(ctx context.Context, paperID string, score types.JargonScore) error

	// UpsertFeatures inserts or replaces the feature record keyed by
	// (paper ID, script version).
	UpsertFeatures(ctx context.Context, rec *types.FeatureRecord) error

	// HasFeatures reports whether a feature record exists for the pair.
	// An empty version matches any version.
	HasFeatures(ctx context.Context, paperID, version string) (bool, error)

	// FindFeatures returns the feature record for the pair, or nil.
	FindFeatures(ctx context.Context, paperID, version string) (*types.FeatureRecord, error)

	// AppendSnapshot appends one citation observation to the paper's
	// history. Observations must be non-decreasing in date; an earlier
	// date is rejected and the history is never edited.
	AppendSnapshot(ctx context.Context, paperID string, obs types.Observation) error

	// FindSnapshot returns the citation history for a paper, or nil.
	FindSnapshot(ctx context.Context, paperID string) (*types.Snapshot, error)

	// RecordIngestRun saves the audit record for one ingestion pass.
	RecordIngestRun(ctx context.Context, run types.IngestRun) error

	// AllPapers returns every paper record in identifier order.
	AllPapers(ctx context.Context) ([]types.Paper, error)

	// Counts summarizes the store contents for status reporting.
	Counts(ctx context.Context) (Counts, error)

	// Close releases the underlying connection.
	Close() error
}

// Counts is a summary of store contents used by the status command.
type Counts struct {
	Papers        int
	WithAbstract  int
	ByStatus      map[types.ProcessingStatus]int
	Features      int
	Snapshots     int
	JargonScored  int
}

// Open constructs the backend selected by cfg.
func Open(ctx context.Context, cfg types.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case types.BackendSQLite:
		return OpenSQLite(cfg)
	case types.BackendMongo, "":
		return OpenMongo(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", types.ErrConfiguration, cfg.Backend)
	}
}

// checkTransition validates a requested edge against the state machine
// before the backend attempts the compare-and-set.
func checkTransition(from, to types.ProcessingStatus) error {
	if !types.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
