// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dmaravilla/scholarpipe/pkg/types"
)

const defaultSQLitePath = "data/scholarpipe.db"

// SQLiteStore is the local single-file backend.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the SQLite database and its schema.
func OpenSQLite(cfg types.StoreConfig) (*SQLiteStore, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = defaultSQLitePath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			title TEXT,
			year INTEGER,
			doi TEXT,
			authors TEXT,
			journal_name TEXT,
			journal_issn TEXT,
			citation_count INTEGER,
			citations_per_year REAL,
			classification TEXT,
			influential_citations INTEGER,
			is_oa INTEGER,
			pdf_url TEXT,
			oa_status TEXT,
			abstract TEXT,
			full_text_extracted INTEGER,
			local_path TEXT,
			processing_status TEXT,
			failure_reason TEXT,
			jargon TEXT,
			tags TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_status ON papers(processing_status)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			paper_id TEXT NOT NULL REFERENCES papers(id),
			date TEXT NOT NULL,
			count INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_paper ON snapshots(paper_id)`,
		`CREATE TABLE IF NOT EXISTS features (
			paper_id TEXT NOT NULL,
			script_version TEXT NOT NULL,
			extractions TEXT NOT NULL,
			extraction_count INTEGER NOT NULL,
			UNIQUE(paper_id, script_version)
		)`,
		`CREATE TABLE IF NOT EXISTS ingest_runs (
			id TEXT PRIMARY KEY,
			started TEXT,
			finished TEXT,
			cursor TEXT,
			fetched INTEGER,
			new INTEGER,
			skipped INTEGER,
			failed INTEGER
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// UpsertPaper inserts or replaces the full record in one statement.
func (s *SQLiteStore) UpsertPaper(ctx context.Context, p *types.Paper) error {
	authorsJSON, _ := json.Marshal(p.Authors)
	tagsJSON, _ := json.Marshal(p.Tags)
	var jargonJSON any
	if p.Jargon != nil {
		b, _ := json.Marshal(p.Jargon)
		jargonJSON = string(b)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO papers (id, title, year, doi, authors, journal_name, journal_issn,
			citation_count, citations_per_year, classification, influential_citations,
			is_oa, pdf_url, oa_status, abstract, full_text_extracted, local_path,
			processing_status, failure_reason, jargon, tags)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, year=excluded.year, doi=excluded.doi,
			authors=excluded.authors, journal_name=excluded.journal_name,
			journal_issn=excluded.journal_issn, citation_count=excluded.citation_count,
			citations_per_year=excluded.citations_per_year,
			classification=excluded.classification,
			influential_citations=excluded.influential_citations,
			is_oa=excluded.is_oa, pdf_url=excluded.pdf_url, oa_status=excluded.oa_status,
			abstract=excluded.abstract, full_text_extracted=excluded.full_text_extracted,
			local_path=excluded.local_path, processing_status=excluded.processing_status,
			failure_reason=excluded.failure_reason, jargon=excluded.jargon, tags=excluded.tags`,
		p.ID, p.Title, p.Year, p.DOI, string(authorsJSON), p.Journal.Name, p.Journal.ISSN,
		p.Impact.CitationCount, p.Impact.CitationsPerYear, p.Impact.Classification,
		p.Impact.InfluentialCitations, boolInt(p.OpenAccess.IsOA), p.OpenAccess.PDFURL,
		p.OpenAccess.Status, p.Content.Abstract, boolInt(p.Content.FullTextExtracted),
		p.Content.LocalPath, string(p.Status), p.FailureReason, jargonJSON, string(tagsJSON),
	)
	if err != nil {
		return fmt.Errorf("%w: upserting paper %s: %v", types.ErrStoreWrite, p.ID, err)
	}
	return nil
}

const paperColumns = `id, title, year, doi, authors, journal_name, journal_issn,
	citation_count, citations_per_year, classification, influential_citations,
	is_oa, pdf_url, oa_status, abstract, full_text_extracted, local_path,
	processing_status, failure_reason, jargon, tags`

func scanPaper(row interface{ Scan(...any) error }) (*types.Paper, error) {
	var p types.Paper
	var authorsJSON, tagsJSON string
	var jargonJSON sql.NullString
	var isOA, fullText int

	err := row.Scan(&p.ID, &p.Title, &p.Year, &p.DOI, &authorsJSON,
		&p.Journal.Name, &p.Journal.ISSN,
		&p.Impact.CitationCount, &p.Impact.CitationsPerYear,
		&p.Impact.Classification, &p.Impact.InfluentialCitations,
		&isOA, &p.OpenAccess.PDFURL, &p.OpenAccess.Status,
		&p.Content.Abstract, &fullText, &p.Content.LocalPath,
		(*string)(&p.Status), &p.FailureReason, &jargonJSON, &tagsJSON)
	if err != nil {
		return nil, err
	}

	p.OpenAccess.IsOA = isOA != 0
	p.Content.FullTextExtracted = fullText != 0
	json.Unmarshal([]byte(authorsJSON), &p.Authors)
	json.Unmarshal([]byte(tagsJSON), &p.Tags)
	if jargonJSON.Valid {
		var js types.JargonScore
		if json.Unmarshal([]byte(jargonJSON.String), &js) == nil {
			p.Jargon = &js
		}
	}
	return &p, nil
}

// FindPaper returns the paper with the given ID, or nil when absent.
func (s *SQLiteStore) FindPaper(ctx context.Context, id string) (*types.Paper, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE id = ?`, id)
	p, err := scanPaper(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding paper %s: %w", id, err)
	}
	return p, nil
}

func (s *SQLiteStore) queryPapers(ctx context.Context, query string, args ...any) ([]types.Paper, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var papers []types.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, *p)
	}
	return papers, rows.Err()
}

// QueryByStatus returns papers in the given status, in identifier order.
func (s *SQLiteStore) QueryByStatus(ctx context.Context, status types.ProcessingStatus, limit int) ([]types.Paper, error) {
	q := `SELECT ` + paperColumns + ` FROM papers WHERE processing_status = ? ORDER BY id`
	args := []any{string(status)}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	papers, err := s.queryPapers(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying by status %s: %w", status, err)
	}
	return papers, nil
}

// TransitionStatus performs the compare-and-set status update.
func (s *SQLiteStore) TransitionStatus(ctx context.Context, id string, from, to types.ProcessingStatus, reason, localPath string) error {
	if err := checkTransition(from, to); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE papers SET processing_status = ?,
			failure_reason = CASE WHEN ? != '' THEN ? ELSE failure_reason END,
			local_path = CASE WHEN ? != '' THEN ? ELSE local_path END
		 WHERE id = ? AND processing_status = ?`,
		string(to), reason, reason, localPath, localPath, id, string(from))
	if err != nil {
		return fmt.Errorf("%w: transitioning %s: %v", types.ErrStoreWrite, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transitioning %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: paper %s is not in status %s", ErrInvalidTransition, id, from)
	}
	return nil
}

// PapersForExtraction selects extraction-eligible papers at a script version.
func (s *SQLiteStore) PapersForExtraction(ctx context.Context, version string, limit int, reprocess bool) ([]types.Paper, error) {
	var cond string
	args := []any{}
	if reprocess {
		cond = `NOT EXISTS (SELECT 1 FROM features f WHERE f.paper_id = papers.id AND f.script_version = ?)`
		args = append(args, version)
	} else {
		cond = `NOT EXISTS (SELECT 1 FROM features f WHERE f.paper_id = papers.id)`
	}

	q := `SELECT ` + paperColumns + ` FROM papers WHERE abstract != '' AND ` + cond + ` ORDER BY id`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	papers, err := s.queryPapers(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting papers for extraction: %w", err)
	}
	return papers, nil
}

// PapersForScoring selects papers with abstracts that lack a jargon score.
func (s *SQLiteStore) PapersForScoring(ctx context.Context, limit int) ([]types.Paper, error) {
	q := `SELECT ` + paperColumns + ` FROM papers WHERE abstract != '' AND jargon IS NULL ORDER BY id`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	papers, err := s.queryPapers(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting papers for scoring: %w", err)
	}
	return papers, nil
}

// ScoredPapers returns papers carrying a jargon score.
func (s *SQLiteStore) ScoredPapers(ctx context.Context) ([]types.Paper, error) {
	papers, err := s.queryPapers(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE jargon IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("selecting scored papers: %w", err)
	}
	return papers, nil
}

// SetJargon writes a jargon score onto an existing paper.
func (s *SQLiteStore) SetJargon(ctx context.Context, paperID string, score types.JargonScore) error {
	b, _ := json.Marshal(score)
	res, err := s.db.ExecContext(ctx,
		`UPDATE papers SET jargon = ? WHERE id = ?`, string(b), paperID)
	if err != nil {
		return fmt.Errorf("%w: setting jargon for %s: %v", types.ErrStoreWrite, paperID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("setting jargon: %w: %s", ErrNotFound, paperID)
	}
	return nil
}

// UpsertFeatures inserts or replaces the record keyed by (paper, version).
func (s *SQLiteStore) UpsertFeatures(ctx context.Context, rec *types.FeatureRecord) error {
	extractionsJSON, _ := json.Marshal(rec.Extractions)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO features (paper_id, script_version, extractions, extraction_count)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(paper_id, script_version) DO UPDATE SET
			extractions=excluded.extractions, extraction_count=excluded.extraction_count`,
		rec.PaperID, rec.ScriptVersion, string(extractionsJSON), rec.ExtractionCount)
	if err != nil {
		return fmt.Errorf("%w: upserting features for %s@%s: %v",
			types.ErrStoreWrite, rec.PaperID, rec.ScriptVersion, err)
	}
	return nil
}

// HasFeatures reports whether a feature record exists for the pair.
func (s *SQLiteStore) HasFeatures(ctx context.Context, paperID, version string) (bool, error) {
	q := `SELECT count(*) FROM features WHERE paper_id = ?`
	args := []any{paperID}
	if version != "" {
		q += ` AND script_version = ?`
		args = append(args, version)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("checking features for %s: %w", paperID, err)
	}
	return n > 0, nil
}

// FindFeatures returns the feature record for the pair, or nil.
func (s *SQLiteStore) FindFeatures(ctx context.Context, paperID, version string) (*types.FeatureRecord, error) {
	var extractionsJSON string
	rec := types.FeatureRecord{PaperID: paperID, ScriptVersion: version}
	err := s.db.QueryRowContext(ctx,
		`SELECT extractions, extraction_count FROM features
		 WHERE paper_id = ? AND script_version = ?`, paperID, version).
		Scan(&extractionsJSON, &rec.ExtractionCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding features for %s@%s: %w", paperID, version, err)
	}
	if err := json.Unmarshal([]byte(extractionsJSON), &rec.Extractions); err != nil {
		return nil, fmt.Errorf("decoding features for %s@%s: %w", paperID, version, err)
	}
	return &rec, nil
}

// AppendSnapshot appends one citation observation, enforcing date order.
func (s *SQLiteStore) AppendSnapshot(ctx context.Context, paperID string, obs types.Observation) error {
	var last sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT max(date) FROM snapshots WHERE paper_id = ?`, paperID).Scan(&last)
	if err != nil {
		return fmt.Errorf("reading snapshot history for %s: %w", paperID, err)
	}
	dateStr := obs.Date.UTC().Format(time.RFC3339)
	if last.Valid && dateStr < last.String {
		return fmt.Errorf("%w: snapshot date %s precedes last observation %s",
			types.ErrValidation, dateStr, last.String)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (paper_id, date, count) VALUES (?, ?, ?)`,
		paperID, dateStr, obs.Count)
	if err != nil {
		return fmt.Errorf("%w: appending snapshot for %s: %v", types.ErrStoreWrite, paperID, err)
	}
	return nil
}

// FindSnapshot returns the citation history for a paper, or nil.
func (s *SQLiteStore) FindSnapshot(ctx context.Context, paperID string) (*types.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, count FROM snapshots WHERE paper_id = ? ORDER BY date`, paperID)
	if err != nil {
		return nil, fmt.Errorf("reading snapshots for %s: %w", paperID, err)
	}
	defer rows.Close()

	var snap types.Snapshot
	snap.PaperID = paperID
	for rows.Next() {
		var dateStr string
		var obs types.Observation
		if err := rows.Scan(&dateStr, &obs.Count); err != nil {
			return nil, err
		}
		if t, parseErr := time.Parse(time.RFC3339, dateStr); parseErr == nil {
			obs.Date = t
		}
		snap.Observations = append(snap.Observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(snap.Observations) == 0 {
		return nil, nil
	}
	return &snap, nil
}

// RecordIngestRun saves the audit record for one ingestion pass.
func (s *SQLiteStore) RecordIngestRun(ctx context.Context, run types.IngestRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO ingest_runs (id, started, finished, cursor, fetched, new, skipped, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Started.UTC().Format(time.RFC3339), run.Finished.UTC().Format(time.RFC3339),
		run.Cursor, run.Fetched, run.New, run.Skipped, run.Failed)
	if err != nil {
		return fmt.Errorf("%w: recording ingest run: %v", types.ErrStoreWrite, err)
	}
	return nil
}

// AllPapers returns every paper record in identifier order.
func (s *SQLiteStore) AllPapers(ctx context.Context) ([]types.Paper, error) {
	return s.queryPapers(ctx, `SELECT `+paperColumns+` FROM papers ORDER BY id`)
}

// Counts summarizes the store contents.
func (s *SQLiteStore) Counts(ctx context.Context) (Counts, error) {
	c := Counts{ByStatus: make(map[types.ProcessingStatus]int)}

	scalars := []struct {
		query string
		dst   *int
	}{
		{`SELECT count(*) FROM papers`, &c.Papers},
		{`SELECT count(*) FROM papers WHERE abstract != ''`, &c.WithAbstract},
		{`SELECT count(*) FROM papers WHERE jargon IS NOT NULL`, &c.JargonScored},
		{`SELECT count(*) FROM features`, &c.Features},
		{`SELECT count(DISTINCT paper_id) FROM snapshots`, &c.Snapshots},
	}
	for _, sc := range scalars {
		if err := s.db.QueryRowContext(ctx, sc.query).Scan(sc.dst); err != nil {
			return Counts{}, fmt.Errorf("counting: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT processing_status, count(*) FROM papers GROUP BY processing_status`)
	if err != nil {
		return Counts{}, fmt.Errorf("counting by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, err
		}
		c.ByStatus[types.ProcessingStatus(status)] = n
	}
	return c, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
