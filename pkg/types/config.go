package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "scholarpipe/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// StoreBackend identifies the record store implementation.
type StoreBackend string

const (
	BackendMongo  StoreBackend = "mongo"
	BackendSQLite StoreBackend = "sqlite"
)

// StoreConfig holds settings for the record store.
type StoreConfig struct {
	// Backend selects the store: mongo (default) or sqlite.
	Backend StoreBackend `json:"backend" yaml:"backend"`

	// MongoURI is the full MongoDB connection string. When empty it is
	// assembled from the mongo-user / mongo-pass / mongo-host secrets.
	MongoURI string `json:"mongo_uri,omitempty" yaml:"mongo_uri,omitempty"`

	// Database is the Mongo database name (default "academic_language").
	Database string `json:"database" yaml:"database"`

	// SQLitePath is the database file for the sqlite backend
	// (default "data/scholarpipe.db").
	SQLitePath string `json:"sqlite_path" yaml:"sqlite_path"`
}

// IngestConfig holds settings for the ingestion stage.
type IngestConfig struct {
	HTTPConfig `yaml:",inline"`

	// TopicID is the OpenAlex concept ID used as the topic filter
	// (e.g. "C18903297" for ecology). Required.
	TopicID string `json:"topic_id" yaml:"topic_id"`

	// YearFrom and YearTo bound the publication_year filter.
	YearFrom int `json:"year_from" yaml:"year_from"`
	YearTo   int `json:"year_to" yaml:"year_to"`

	// Email is sent as the mailto parameter for polite pool access and is
	// required by the Unpaywall API.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`

	// PerPage is the OpenAlex page size (default 50, max 200).
	PerPage int `json:"per_page" yaml:"per_page"`

	// MaxPages caps how many pages one run fetches; 0 means one page.
	MaxPages int `json:"max_pages" yaml:"max_pages"`

	// Cursor resumes paging from a previous run ("*" starts fresh).
	Cursor string `json:"cursor,omitempty" yaml:"cursor,omitempty"`
}

// DownloadConfig holds settings for the PDF download stage.
type DownloadConfig struct {
	HTTPConfig `yaml:",inline"`

	// PDFDir is the base directory for downloaded PDFs (contains per-year
	// subdirectories).
	PDFDir string `json:"pdf_dir" yaml:"pdf_dir"`

	// Delay is the pause between consecutive downloads (default 1s).
	Delay time.Duration `json:"delay" yaml:"delay"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier.
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// ExtractConfig holds settings for the entity-extraction stage.
type ExtractConfig struct {
	AIConfig `yaml:",inline"`

	// ScriptVersion tags feature records so reprocessing under a new
	// version never clobbers earlier results (default "v1.0").
	ScriptVersion string `json:"script_version" yaml:"script_version"`
}

// JargonConfig holds settings for the jargon-scoring stage.
type JargonConfig struct {
	// VocabPath is the reference word list, one word per line.
	VocabPath string `json:"vocab_path" yaml:"vocab_path"`

	// MinTokenLen excludes tokens shorter than this from both the
	// numerator and the denominator (default 3).
	MinTokenLen int `json:"min_token_len" yaml:"min_token_len"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Store    StoreConfig    `json:"store" yaml:"store"`
	Ingest   IngestConfig   `json:"ingest" yaml:"ingest"`
	Download DownloadConfig `json:"download" yaml:"download"`
	Extract  ExtractConfig  `json:"extract" yaml:"extract"`
	Jargon   JargonConfig   `json:"jargon" yaml:"jargon"`
}
