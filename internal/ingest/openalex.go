// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/dmaravilla/scholarpipe/internal/httputil"
	"github.com/dmaravilla/scholarpipe/pkg/types"
)

// openAlexBase is the OpenAlex Works endpoint. Declared as a var so tests
// can substitute an httptest server.
var openAlexBase = "https://api.openalex.org/works"

// startCursor begins a fresh cursor-paged traversal.
const startCursor = "*"

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

// Page is one page of candidate works plus the cursor for the next page.
// An empty NextCursor means the sequence is exhausted. Because paging is
// driven by the server-issued cursor rather than in-memory state, a fresh
// call with the same cursor reproduces the same position.
type Page struct {
	Works      []Work
	NextCursor string
	Total      int
}

// FetchPage queries one page of works matching the topic and year filters,
// sorted by citation count descending.
func FetchPage(ctx context.Context, client *http.Client, cfg types.IngestConfig, cursor string) (Page, error) {
	if cfg.TopicID == "" {
		return Page{}, fmt.Errorf("%w: topic ID not set", types.ErrConfiguration)
	}
	if cursor == "" {
		cursor = startCursor
	}

	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	filter := fmt.Sprintf("concepts.id:%s,publication_year:%d-%d,is_oa:true,has_abstract:true",
		cfg.TopicID, cfg.YearFrom, cfg.YearTo)

	params := url.Values{
		"filter":   {filter},
		"sort":     {"cited_by_count:desc"},
		"per-page": {fmt.Sprintf("%d", perPage)},
		"cursor":   {cursor},
	}
	if cfg.Email != "" {
		params.Set("mailto", cfg.Email)
	}

	reqURL := openAlexBase + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return Page{}, fmt.Errorf("%w: OpenAlex request: %v", types.ErrTransientSource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("%w: OpenAlex returned HTTP %d", types.ErrTransientSource, resp.StatusCode)
	}

	var oar openAlexResponse
	if err := json.NewDecoder(resp.Body).Decode(&oar); err != nil {
		return Page{}, fmt.Errorf("%w: parsing OpenAlex response: %v", types.ErrValidation, err)
	}

	return Page{
		Works:      oar.Results,
		NextCursor: oar.Meta.NextCursor,
		Total:      oar.Meta.Count,
	}, nil
}

// NormalizeDOI lowercases a DOI and strips doi.org URL prefixes.
func NormalizeDOI(doi string) string {
	doi = strings.ToLower(strings.TrimSpace(doi))
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	return doi
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to the positions where it
// appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Meta    openAlexMeta `json:"meta"`
	Results []Work       `json:"results"`
}

type openAlexMeta struct {
	Count      int    `json:"count"`
	NextCursor string `json:"next_cursor"`
}

// Work is one candidate record from the primary source.
type Work struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DOI                   string               `json:"doi"`
	PublicationYear       int                  `json:"publication_year"`
	CitedByCount          int                  `json:"cited_by_count"`
	IsOA                  bool                 `json:"is_oa"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	Abstract              string               `json:"abstract"`
	HostVenue             *openAlexVenue       `json:"host_venue"`
	PrimaryLocation       *openAlexLocation    `json:"primary_location"`
	BestOALocation        *openAlexLocation    `json:"best_oa_location"`
	CountsByYear          []openAlexYearCount  `json:"counts_by_year"`
	Concepts              []openAlexConcept    `json:"concepts"`
}

type openAlexAuthorship struct {
	Author       openAlexAuthor        `json:"author"`
	Institutions []openAlexInstitution `json:"institutions"`
}

type openAlexAuthor struct {
	DisplayName string `json:"display_name"`
}

type openAlexInstitution struct {
	DisplayName string `json:"display_name"`
}

type openAlexVenue struct {
	DisplayName string `json:"display_name"`
	ISSNL       string `json:"issn_l"`
}

type openAlexLocation struct {
	PDFURL  string         `json:"pdf_url"`
	URL     string         `json:"url_for_pdf"`
	License string         `json:"license"`
	Source  *openAlexVenue `json:"source"`
}

type openAlexYearCount struct {
	Year         int `json:"year"`
	CitedByCount int `json:"cited_by_count"`
}

type openAlexConcept struct {
	DisplayName string `json:"display_name"`
}
