// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jargon

import (
	"math"
	"sort"
	"strings"

	"github.com/dmaravilla/scholarpipe/pkg/types"
)

// DefaultMinTokenLen excludes one- and two-letter tokens, which are mostly
// articles, variable names, and tokenization noise.
const DefaultMinTokenLen = 3

// topJargonLimit caps the number of most-frequent jargon terms reported.
const topJargonLimit = 10

// Scorer computes jargon density against an immutable Vocabulary. Scoring
// is a pure function of the input text: identical text always yields an
// identical score.
type Scorer struct {
	Vocab *Vocabulary

	// MinTokenLen drops tokens shorter than this from both the numerator
	// and the denominator. Zero means DefaultMinTokenLen.
	MinTokenLen int
}

// Score tokenizes text into lowercase alphabetic words and classifies each
// as jargon when absent from the vocabulary. Density is jargon over total;
// empty or vocabulary-free input yields all zeros, never a division by zero.
func (s Scorer) Score(text string) types.JargonScore {
	tokens := Tokenize(text, s.minLen())
	if len(tokens) == 0 {
		return types.JargonScore{}
	}

	counts := make(map[string]int)
	jargonCount := 0
	for _, tok := range tokens {
		if s.Vocab.Contains(tok) {
			continue
		}
		jargonCount++
		counts[tok]++
	}

	return types.JargonScore{
		Density:     round4(float64(jargonCount) / float64(len(tokens))),
		WordCount:   len(tokens),
		JargonCount: jargonCount,
		TopJargon:   topTerms(counts, topJargonLimit),
	}
}

func (s Scorer) minLen() int {
	if s.MinTokenLen > 0 {
		return s.MinTokenLen
	}
	return DefaultMinTokenLen
}

// Tokenize splits text into lowercase runs of ASCII letters, dropping
// tokens shorter than minLen. Numerals and punctuation never count.
func Tokenize(text string, minLen int) []string {
	lower := strings.ToLower(text)
	var tokens []string
	start := -1
	for i, r := range lower {
		if r >= 'a' && r <= 'z' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if i-start >= minLen {
				tokens = append(tokens, lower[start:i])
			}
			start = -1
		}
	}
	if start >= 0 && len(lower)-start >= minLen {
		tokens = append(tokens, lower[start:])
	}
	return tokens
}

// topTerms returns the limit most frequent terms, ties broken
// alphabetically so the result is stable.
func topTerms(counts map[string]int, limit int) []types.JargonTerm {
	if len(counts) == 0 {
		return nil
	}
	terms := make([]types.JargonTerm, 0, len(counts))
	for term, n := range counts {
		terms = append(terms, types.JargonTerm{Term: term, Count: n})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})
	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}

// round4 rounds to four decimal places to keep stored densities compact.
func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
