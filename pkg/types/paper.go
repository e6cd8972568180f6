// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ProcessingStatus tracks a paper's progress through the acquisition and
// parsing pipeline. The set is closed: stages advance papers only along the
// transitions allowed by CanTransition.
type ProcessingStatus string

const (
	// StatusPendingDownload is the initial state for papers with a
	// resolvable PDF URL.
	StatusPendingDownload ProcessingStatus = "pending_download"

	// StatusNoPDF is terminal: neither the primary nor the secondary
	// sources offer a retrievable open-access PDF.
	StatusNoPDF ProcessingStatus = "no_pdf_available"

	// StatusDownloaded means the PDF artifact is on local disk.
	StatusDownloaded ProcessingStatus = "downloaded"

	// StatusPendingParse means the PDF is queued for text extraction.
	StatusPendingParse ProcessingStatus = "pending_parse"

	// StatusParsed is the terminal success state for ingestion plus parse.
	StatusParsed ProcessingStatus = "parsed"

	// StatusFailed is entered from any non-terminal state on an
	// unrecoverable error; FailureReason carries the cause.
	StatusFailed ProcessingStatus = "failed"
)

// AllStatuses lists every ProcessingStatus in pipeline order.
var AllStatuses = []ProcessingStatus{
	StatusPendingDownload,
	StatusNoPDF,
	StatusDownloaded,
	StatusPendingParse,
	StatusParsed,
	StatusFailed,
}

// statusTransitions is the allowed edge set of the paper state machine.
// no_pdf_available, parsed, and failed are terminal.
var statusTransitions = map[ProcessingStatus][]ProcessingStatus{
	StatusPendingDownload: {StatusDownloaded, StatusFailed},
	StatusDownloaded:      {StatusPendingParse, StatusFailed},
	StatusPendingParse:    {StatusParsed, StatusFailed},
}

// CanTransition reports whether a paper may move from one status to another.
func CanTransition(from, to ProcessingStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status admits no further transitions.
func (s ProcessingStatus) Terminal() bool {
	return len(statusTransitions[s]) == 0
}

// Author is one entry of a paper's ordered author list.
type Author struct {
	Name        string `json:"name" bson:"name" yaml:"name"`
	Affiliation string `json:"affiliation,omitempty" bson:"affiliation,omitempty" yaml:"affiliation,omitempty"`
}

// Journal describes the publication venue.
type Journal struct {
	Name string `json:"name" bson:"name" yaml:"name"`
	ISSN string `json:"issn,omitempty" bson:"issn,omitempty" yaml:"issn,omitempty"`
}

// Impact holds citation metrics and the derived classification.
type Impact struct {
	// CitationCount is the total citation count from the primary source.
	CitationCount int `json:"citation_count" bson:"citation_count" yaml:"citation_count"`

	// CitationsPerYear is CitationCount divided by the paper's age in
	// years, with a minimum age of one year.
	CitationsPerYear float64 `json:"citations_per_year" bson:"citations_per_year" yaml:"citations_per_year"`

	// Classification buckets CitationsPerYear: HIGH (>5), MODERATE (>1), LOW.
	Classification string `json:"classification" bson:"classification" yaml:"classification"`

	// InfluentialCitations is the citation count from the most recent
	// counts-by-year entry.
	InfluentialCitations int `json:"influential_citations" bson:"influential_citations" yaml:"influential_citations"`
}

// Impact classification levels.
const (
	ImpactHigh     = "HIGH"
	ImpactModerate = "MODERATE"
	ImpactLow      = "LOW"
)

// OpenAccess describes a paper's open-access availability.
type OpenAccess struct {
	IsOA   bool   `json:"is_oa" bson:"is_oa" yaml:"is_oa"`
	PDFURL string `json:"pdf_url,omitempty" bson:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`
	Status string `json:"status,omitempty" bson:"status,omitempty" yaml:"status,omitempty"`
}

// Content holds the paper's textual content and its on-disk location.
type Content struct {
	Abstract          string `json:"abstract" bson:"abstract" yaml:"abstract"`
	FullTextExtracted bool   `json:"full_text_extracted" bson:"full_text_extracted" yaml:"full_text_extracted"`
	LocalPath         string `json:"local_path,omitempty" bson:"local_path,omitempty" yaml:"local_path,omitempty"`
}

// JargonScore is the outcome of scoring an abstract against the reference
// vocabulary. Density is JargonCount over WordCount, in [0,1].
type JargonScore struct {
	Density     float64      `json:"density" bson:"density" yaml:"density"`
	WordCount   int          `json:"word_count" bson:"word_count" yaml:"word_count"`
	JargonCount int          `json:"jargon_count" bson:"jargon_count" yaml:"jargon_count"`
	TopJargon   []JargonTerm `json:"top_jargon,omitempty" bson:"top_jargon,omitempty" yaml:"top_jargon,omitempty"`
}

// JargonTerm is one out-of-vocabulary token and its occurrence count.
type JargonTerm struct {
	Term  string `json:"term" bson:"term" yaml:"term"`
	Count int    `json:"count" bson:"count" yaml:"count"`
}

// Paper is the persisted record for one scholarly work. The ID is the
// stable external identifier (OpenAlex work ID, falling back to the DOI)
// and is immutable once assigned: ingestion creates a record exactly once,
// and later stages only mutate it.
type Paper struct {
	ID            string           `json:"id" bson:"_id" yaml:"id"`
	Title         string           `json:"title" bson:"title" yaml:"title"`
	Year          int              `json:"year,omitempty" bson:"year,omitempty" yaml:"year,omitempty"`
	DOI           string           `json:"doi,omitempty" bson:"doi,omitempty" yaml:"doi,omitempty"`
	Authors       []Author         `json:"authors" bson:"authors" yaml:"authors"`
	Journal       Journal          `json:"journal" bson:"journal" yaml:"journal"`
	Impact        Impact           `json:"impact" bson:"impact" yaml:"impact"`
	OpenAccess    OpenAccess       `json:"open_access" bson:"open_access" yaml:"open_access"`
	Content       Content          `json:"content" bson:"content" yaml:"content"`
	Status        ProcessingStatus `json:"processing_status" bson:"processing_status" yaml:"processing_status"`
	FailureReason string           `json:"failure_reason,omitempty" bson:"failure_reason,omitempty" yaml:"failure_reason,omitempty"`
	Jargon        *JargonScore     `json:"jargon,omitempty" bson:"jargon,omitempty" yaml:"jargon,omitempty"`
	Tags          []string         `json:"tags" bson:"tags" yaml:"tags"`
}

// Observation is one dated citation-count reading.
type Observation struct {
	Date  time.Time `json:"date" bson:"date" yaml:"date"`
	Count int       `json:"count" bson:"count" yaml:"count"`
}

// Snapshot holds the append-only citation history for one paper. Entries
// are ordered, non-decreasing in date, and never edited after the fact.
type Snapshot struct {
	PaperID      string        `json:"paper_id" bson:"paper_id" yaml:"paper_id"`
	Observations []Observation `json:"observations" bson:"observations" yaml:"observations"`
}

// Extraction is one entity pulled from an abstract: a class (method,
// subject, metric, finding), the evidence text, and free-form attributes.
type Extraction struct {
	Class      string            `json:"class" bson:"class" yaml:"class"`
	Text       string            `json:"text" bson:"text" yaml:"text"`
	Attributes map[string]string `json:"attributes,omitempty" bson:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// FeatureRecord holds the extraction output for one (paper, script version)
// pair. Re-running under a new ScriptVersion creates a new record rather
// than overwriting; re-running under the same version overwrites idempotently.
type FeatureRecord struct {
	PaperID         string       `json:"paper_id" bson:"paper_id" yaml:"paper_id"`
	ScriptVersion   string       `json:"script_version" bson:"script_version" yaml:"script_version"`
	Extractions     []Extraction `json:"extractions" bson:"extractions" yaml:"extractions"`
	ExtractionCount int          `json:"extraction_count" bson:"extraction_count" yaml:"extraction_count"`
}

// IngestRun records one ingestion pass for auditing and resumability.
type IngestRun struct {
	ID       string    `json:"id" bson:"_id" yaml:"id"`
	Started  time.Time `json:"started" bson:"started" yaml:"started"`
	Finished time.Time `json:"finished" bson:"finished" yaml:"finished"`
	Cursor   string    `json:"cursor,omitempty" bson:"cursor,omitempty" yaml:"cursor,omitempty"`
	Fetched  int       `json:"fetched" bson:"fetched" yaml:"fetched"`
	New      int       `json:"new" bson:"new" yaml:"new"`
	Skipped  int       `json:"skipped" bson:"skipped" yaml:"skipped"`
	Failed   int       `json:"failed" bson:"failed" yaml:"failed"`
}
