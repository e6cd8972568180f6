// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package jargon scores abstract text against a reference vocabulary of
// common words. The density of out-of-vocabulary tokens approximates how
// much specialist language a paper uses.
package jargon

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrVocabLoad marks an unreadable or empty vocabulary source.
var ErrVocabLoad = errors.New("vocabulary load error")

// Vocabulary is an immutable membership index over a reference word list.
// Build one with Load and pass it by value injection; lookups are
// case-insensitive and side-effect-free.
type Vocabulary struct {
	words map[string]struct{}
}

// Load reads a word list (one word per line, blank lines ignored) and
// builds the index. It fails with an error wrapping ErrVocabLoad when the
// file is unreadable or contains no words.
func Load(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrVocabLoad, path, err)
	}
	defer f.Close()

	words := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		w := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if w != "" {
			words[w] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrVocabLoad, path, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: %s contains no words", ErrVocabLoad, path)
	}

	return &Vocabulary{words: words}, nil
}

// Contains reports whether word is in the vocabulary, ignoring case.
func (v *Vocabulary) Contains(word string) bool {
	_, ok := v.words[strings.ToLower(word)]
	return ok
}

// Len returns the number of words in the vocabulary.
func (v *Vocabulary) Len() int {
	return len(v.words)
}
