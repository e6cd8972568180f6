// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmaravilla/scholarpipe/internal/httputil"
	"github.com/dmaravilla/scholarpipe/pkg/types"
)

// crossrefBase is the Crossref works endpoint. Declared as a var so tests
// can substitute an httptest server.
var crossrefBase = "https://api.crossref.org/works/"

// CrossrefMeta is the slice of a Crossref work record used for enrichment.
type CrossrefMeta struct {
	Title          string
	Abstract       string
	Authors        []types.Author
	ContainerTitle string
	ISSN           string
}

// LookupCrossref fetches metadata for a DOI. A not-found or transient
// failure returns an error the caller treats as non-fatal: enrichment is
// best-effort and never blocks ingestion of the record.
func LookupCrossref(ctx context.Context, client *http.Client, doi string, cfg types.IngestConfig) (CrossrefMeta, error) {
	apiURL := crossrefBase + url.PathEscape(NormalizeDOI(doi))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return CrossrefMeta{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return CrossrefMeta{}, fmt.Errorf("%w: Crossref request: %v", types.ErrTransientSource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return CrossrefMeta{}, fmt.Errorf("%w: Crossref returned HTTP %d", types.ErrTransientSource, resp.StatusCode)
	}

	var cr crossrefResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return CrossrefMeta{}, fmt.Errorf("%w: parsing Crossref response: %v", types.ErrValidation, err)
	}

	meta := CrossrefMeta{Abstract: cr.Message.Abstract}
	if len(cr.Message.Title) > 0 {
		meta.Title = cr.Message.Title[0]
	}
	if len(cr.Message.ContainerTitle) > 0 {
		meta.ContainerTitle = cr.Message.ContainerTitle[0]
	}
	if len(cr.Message.ISSN) > 0 {
		meta.ISSN = cr.Message.ISSN[0]
	}
	for _, a := range cr.Message.Author {
		name := strings.TrimSpace(a.Given + " " + a.Family)
		if name == "" {
			continue
		}
		author := types.Author{Name: name}
		if len(a.Affiliation) > 0 {
			author.Affiliation = a.Affiliation[0].Name
		}
		meta.Authors = append(meta.Authors, author)
	}
	return meta, nil
}

// Crossref API JSON structures.
type crossrefResponse struct {
	Message crossrefWork `json:"message"`
}

type crossrefWork struct {
	Title          []string         `json:"title"`
	Abstract       string           `json:"abstract"`
	Author         []crossrefAuthor `json:"author"`
	ContainerTitle []string         `json:"container-title"`
	ISSN           []string         `json:"ISSN"`
}

type crossrefAuthor struct {
	Given       string                `json:"given"`
	Family      string                `json:"family"`
	Affiliation []crossrefAffiliation `json:"affiliation"`
}

type crossrefAffiliation struct {
	Name string `json:"name"`
}
