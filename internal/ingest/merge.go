// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"time"

	"github.com/dmaravilla/scholarpipe/pkg/types"
)

// nowYear returns the current year. Tests override it so impact scores
// are deterministic.
var nowYear = func() int { return time.Now().Year() }

// ImpactScore computes citations per year since publication, with a
// minimum age of one year to avoid dividing by zero.
func ImpactScore(citations, publicationYear int) float64 {
	current := nowYear()
	age := 1
	if publicationYear > 0 && publicationYear <= current {
		age = current - publicationYear + 1
		if age < 1 {
			age = 1
		}
	}
	return float64(citations) / float64(age)
}

// ClassifyImpact buckets a citations-per-year score.
func ClassifyImpact(score float64) string {
	switch {
	case score > 5:
		return types.ImpactHigh
	case score > 1:
		return types.ImpactModerate
	default:
		return types.ImpactLow
	}
}

// initialStatus derives the record's starting state from PDF availability.
func initialStatus(pdfURL string) types.ProcessingStatus {
	if pdfURL != "" {
		return types.StatusPendingDownload
	}
	return types.StatusNoPDF
}

// BuildPaper merges the primary-source work with the secondary-source
// lookups into one persisted record. Merging is first-writer-wins per
// field by source priority: OpenAlex, then Crossref, then Unpaywall.
// Secondary data never overwrites a value the primary source provided.
func BuildPaper(work Work, crossref CrossrefMeta, oa OAInfo) *types.Paper {
	doi := NormalizeDOI(work.DOI)

	id := work.ID
	if id == "" {
		id = doi
	}

	title := work.Title
	if title == "" {
		title = crossref.Title
	}

	authors := extractAuthors(work)
	if len(authors) == 0 {
		authors = crossref.Authors
	}

	journal := types.Journal{}
	if work.HostVenue != nil {
		journal.Name = work.HostVenue.DisplayName
		journal.ISSN = work.HostVenue.ISSNL
	}
	if journal.Name == "" && work.PrimaryLocation != nil && work.PrimaryLocation.Source != nil {
		journal.Name = work.PrimaryLocation.Source.DisplayName
		journal.ISSN = work.PrimaryLocation.Source.ISSNL
	}
	if journal.Name == "" {
		journal.Name = crossref.ContainerTitle
	}
	if journal.ISSN == "" {
		journal.ISSN = crossref.ISSN
	}

	abstract := work.Abstract
	if abstract == "" {
		abstract = reconstructAbstract(work.AbstractInvertedIndex)
	}
	if abstract == "" {
		abstract = crossref.Abstract
	}

	pdfURL := ""
	license := ""
	if work.BestOALocation != nil {
		pdfURL = firstNonEmpty(work.BestOALocation.URL, work.BestOALocation.PDFURL)
		license = work.BestOALocation.License
	}
	if pdfURL == "" && work.PrimaryLocation != nil {
		pdfURL = work.PrimaryLocation.PDFURL
	}
	if pdfURL == "" {
		pdfURL = oa.PDFURL
	}
	if license == "" {
		license = oa.License
	}

	score := ImpactScore(work.CitedByCount, work.PublicationYear)

	influential := 0
	if n := len(work.CountsByYear); n > 0 {
		influential = work.CountsByYear[n-1].CitedByCount
	}

	var tags []string
	for _, c := range work.Concepts {
		if c.DisplayName != "" {
			tags = append(tags, c.DisplayName)
		}
	}

	return &types.Paper{
		ID:      id,
		Title:   title,
		Year:    work.PublicationYear,
		DOI:     doi,
		Authors: authors,
		Journal: journal,
		Impact: types.Impact{
			CitationCount:        work.CitedByCount,
			CitationsPerYear:     score,
			Classification:       ClassifyImpact(score),
			InfluentialCitations: influential,
		},
		OpenAccess: types.OpenAccess{
			IsOA:   work.IsOA || oa.IsOA,
			PDFURL: pdfURL,
			Status: license,
		},
		Content: types.Content{Abstract: abstract},
		Status:  initialStatus(pdfURL),
		Tags:    tags,
	}
}

// extractAuthors pulls names and first affiliations from OpenAlex authorships.
func extractAuthors(work Work) []types.Author {
	var authors []types.Author
	for _, authorship := range work.Authorships {
		name := authorship.Author.DisplayName
		if name == "" {
			continue
		}
		author := types.Author{Name: name}
		if len(authorship.Institutions) > 0 {
			author.Affiliation = authorship.Institutions[0].DisplayName
		}
		authors = append(authors, author)
	}
	return authors
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
