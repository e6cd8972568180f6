// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jargon

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/dmaravilla/scholarpipe/pkg/types"
)

// --- helpers ---

func writeVocab(t *testing.T, words ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocab.txt")
	var buf bytes.Buffer
	for _, w := range words {
		buf.WriteString(w + "\n")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testVocab(t *testing.T) *Vocabulary {
	t.Helper()
	v, err := Load(writeVocab(t, "the", "and", "soil", "water", "nitrogen", "Forest"))
	if err != nil {
		t.Fatal(err)
	}
	return v
}

// --- Load ---

func TestLoad(t *testing.T) {
	v := testVocab(t)
	if v.Len() != 6 {
		t.Errorf("Len() = %d, want 6", v.Len())
	}

	tests := []struct {
		word string
		want bool
	}{
		{"the", true},
		{"THE", true},
		{"forest", true},
		{"Forest", true},
		{"xyzzy", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := v.Contains(tt.word); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.word, got, tt.want)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, []byte("\n\n  \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for empty vocabulary")
	}
}

// --- Tokenize ---

func TestTokenize(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		minLen int
		want   []string
	}{
		{"plain words", "soil nitrogen levels", 3, []string{"soil", "nitrogen", "levels"}},
		{"case folded", "Soil NITROGEN", 3, []string{"soil", "nitrogen"}},
		{"numerals excluded", "12 sites saw a 23% decrease", 3, []string{"sites", "saw", "decrease"}},
		{"short tokens dropped", "a is of the m2", 3, []string{"the"}},
		{"min length one", "a b cd", 1, []string{"a", "b", "cd"}},
		{"punctuation split", "nitrogen-fixing (bacteria)", 3, []string{"nitrogen", "fixing", "bacteria"}},
		{"empty", "", 3, nil},
		{"only digits", "12 34 56", 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text, tt.minLen)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q, %d) = %v, want %v", tt.text, tt.minLen, got, tt.want)
			}
		})
	}
}

// --- Score ---

func TestScoreBoundaries(t *testing.T) {
	scorer := Scorer{Vocab: testVocab(t)}

	tests := []struct {
		name        string
		text        string
		wantDensity float64
		wantWords   int
		wantJargon  int
	}{
		{"empty input", "", 0.0, 0, 0},
		{"all in vocabulary", "the the the", 0.0, 3, 0},
		{"none in vocabulary", "xyzzy plugh", 1.0, 2, 2},
		{"half jargon", "soil mycorrhizae water rhizosphere", 0.5, 4, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score(tt.text)
			if got.Density != tt.wantDensity {
				t.Errorf("Density = %v, want %v", got.Density, tt.wantDensity)
			}
			if got.WordCount != tt.wantWords {
				t.Errorf("WordCount = %d, want %d", got.WordCount, tt.wantWords)
			}
			if got.JargonCount != tt.wantJargon {
				t.Errorf("JargonCount = %d, want %d", got.JargonCount, tt.wantJargon)
			}
		})
	}
}

func TestScoreDeterministic(t *testing.T) {
	scorer := Scorer{Vocab: testVocab(t)}
	text := "mycorrhizae colonized the rhizosphere of forest soil mycorrhizae"

	first := scorer.Score(text)
	second := scorer.Score(text)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("scores differ across calls:\n%+v\n%+v", first, second)
	}
}

func TestScoreTopJargon(t *testing.T) {
	scorer := Scorer{Vocab: testVocab(t)}
	got := scorer.Score("mycorrhizae mycorrhizae rhizosphere soil")

	want := []types.JargonTerm{
		{Term: "mycorrhizae", Count: 2},
		{Term: "rhizosphere", Count: 1},
	}
	if !reflect.DeepEqual(got.TopJargon, want) {
		t.Errorf("TopJargon = %v, want %v", got.TopJargon, want)
	}
}

func TestScoreMinTokenLen(t *testing.T) {
	scorer := Scorer{Vocab: testVocab(t), MinTokenLen: 5}
	// "soil" (4) is dropped entirely; only "nitrogen" (in vocab) and
	// "mycorrhizae" (jargon) count.
	got := scorer.Score("soil nitrogen mycorrhizae")
	if got.WordCount != 2 {
		t.Errorf("WordCount = %d, want 2", got.WordCount)
	}
	if got.JargonCount != 1 {
		t.Errorf("JargonCount = %d, want 1", got.JargonCount)
	}
}

// --- batch scoring ---

type fakeSource struct {
	papers   map[string]*types.Paper
	failSet  map[string]bool // paper IDs whose SetJargon fails
	setCalls []string
}

func newFakeSource(papers ...*types.Paper) *fakeSource {
	s := &fakeSource{papers: map[string]*types.Paper{}, failSet: map[string]bool{}}
	for _, p := range papers {
		s.papers[p.ID] = p
	}
	return s
}

func (s *fakeSource) PapersForScoring(_ context.Context, limit int) ([]types.Paper, error) {
	var out []types.Paper
	for _, p := range s.papers {
		if p.Content.Abstract != "" && p.Jargon == nil {
			out = append(out, *p)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeSource) SetJargon(_ context.Context, paperID string, score types.JargonScore) error {
	if s.failSet[paperID] {
		return fmt.Errorf("%w: forced failure", types.ErrStoreWrite)
	}
	s.setCalls = append(s.setCalls, paperID)
	sc := score
	s.papers[paperID].Jargon = &sc
	return nil
}

func (s *fakeSource) ScoredPapers(_ context.Context) ([]types.Paper, error) {
	var out []types.Paper
	for _, p := range s.papers {
		if p.Jargon != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func TestScoreAll(t *testing.T) {
	src := newFakeSource(
		&types.Paper{ID: "W1", Content: types.Content{Abstract: "soil mycorrhizae"}},
		&types.Paper{ID: "W2", Content: types.Content{Abstract: "xyzzy plugh"}},
		&types.Paper{ID: "W3"}, // no abstract, never selected
	)
	scorer := Scorer{Vocab: testVocab(t)}

	var buf bytes.Buffer
	summary, err := ScoreAll(context.Background(), src, scorer, 0, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Scored != 2 || summary.Failed != 0 {
		t.Errorf("summary = %+v, want {Scored:2 Failed:0}", summary)
	}
	if src.papers["W1"].Jargon == nil || src.papers["W2"].Jargon == nil {
		t.Error("scores not written back")
	}
	if src.papers["W3"].Jargon != nil {
		t.Error("abstract-less paper was scored")
	}
}

func TestScoreAllFailureIsolation(t *testing.T) {
	src := newFakeSource(
		&types.Paper{ID: "W1", Content: types.Content{Abstract: "soil"}},
		&types.Paper{ID: "W2", Content: types.Content{Abstract: "water"}},
	)
	src.failSet["W1"] = true
	scorer := Scorer{Vocab: testVocab(t)}

	var buf bytes.Buffer
	summary, err := ScoreAll(context.Background(), src, scorer, 0, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Scored != 1 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want {Scored:1 Failed:1}", summary)
	}
}
