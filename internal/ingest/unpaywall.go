// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dmaravilla/scholarpipe/internal/httputil"
	"github.com/dmaravilla/scholarpipe/pkg/types"
)

// unpaywallBase is the Unpaywall DOI endpoint. Declared as a var so tests
// can substitute an httptest server.
var unpaywallBase = "https://api.unpaywall.org/v2/"

// OAInfo is the open-access information Unpaywall reports for a DOI.
type OAInfo struct {
	IsOA    bool
	PDFURL  string
	License string
}

// LookupOAStatus checks Unpaywall for a DOI's open-access status. Like
// Crossref, this is best-effort enrichment; failures are non-fatal.
func LookupOAStatus(ctx context.Context, client *http.Client, doi string, cfg types.IngestConfig) (OAInfo, error) {
	apiURL := unpaywallBase + url.PathEscape(NormalizeDOI(doi))
	if cfg.Email != "" {
		apiURL += "?email=" + url.QueryEscape(cfg.Email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return OAInfo{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return OAInfo{}, fmt.Errorf("%w: Unpaywall request: %v", types.ErrTransientSource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return OAInfo{}, fmt.Errorf("%w: Unpaywall returned HTTP %d", types.ErrTransientSource, resp.StatusCode)
	}

	var ur unpaywallResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return OAInfo{}, fmt.Errorf("%w: parsing Unpaywall response: %v", types.ErrValidation, err)
	}

	info := OAInfo{IsOA: ur.IsOA}
	if ur.BestOALocation != nil {
		info.PDFURL = ur.BestOALocation.URLForPDF
		info.License = ur.BestOALocation.License
	}
	if info.PDFURL == "" {
		info.PDFURL = ur.URL
	}
	return info, nil
}

// Unpaywall API JSON structures.
type unpaywallResponse struct {
	IsOA           bool               `json:"is_oa"`
	URL            string             `json:"url"`
	BestOALocation *unpaywallLocation `json:"best_oa_location"`
}

type unpaywallLocation struct {
	URLForPDF string `json:"url_for_pdf"`
	License   string `json:"license"`
}
