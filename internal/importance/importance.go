// Package importance ranks pages by how many of their summary terms also
// appear in the seed pages.
package importance

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"influencemap/internal/graph"
)

//go:embed stopwords.txt
var englishStopWords string

// Vocabulary is the set of normalized terms drawn from the seed pages.
type Vocabulary map[string]struct{}

// Contains reports whether term is part of the vocabulary.
func (v Vocabulary) Contains(term string) bool {
	_, ok := v[term]
	return ok
}

// Scorer tokenizes text against a stop-word list.
type Scorer struct {
	stop map[string]struct{}
}

// NewScorer returns a scorer using the built-in English stop words plus any
// extra words given.
func NewScorer(extra ...string) *Scorer {
	s := &Scorer{stop: make(map[string]struct{})}
	// The embedded list has short lines only, so the scan cannot fail.
	_ = s.addWords(strings.NewReader(englishStopWords))
	for _, w := range extra {
		s.stop[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return s
}

// LoadStopWords adds one word per line from path.
func (s *Scorer) LoadStopWords(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open stop words: %w", err)
	}
	defer f.Close()
	return s.addWords(f)
}

func (s *Scorer) addWords(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		w := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if w != "" {
			s.stop[w] = struct{}{}
		}
	}
	return scanner.Err()
}

// IsStopWord reports whether the lower-cased word is ignored.
func (s *Scorer) IsStopWord(word string) bool {
	_, ok := s.stop[strings.ToLower(word)]
	return ok
}

// terms splits text on whitespace and yields lower-cased non-stop words.
func (s *Scorer) terms(text string, yield func(string)) {
	for _, w := range strings.Fields(text) {
		lw := strings.ToLower(w)
		if _, stop := s.stop[lw]; stop {
			continue
		}
		yield(lw)
	}
}

// BuildVocabulary collects the terms of every node's summary and title.
// Summaries must already be loaded; unloaded ones count as empty.
func (s *Scorer) BuildVocabulary(nodes []*graph.Node) Vocabulary {
	vocab := make(Vocabulary)
	add := func(term string) { vocab[term] = struct{}{} }
	for _, n := range nodes {
		s.terms(n.CachedSummary(), add)
		s.terms(n.Title, add)
	}
	return vocab
}

// Score counts the summary terms found in vocab. Repeated terms count each
// time they occur.
func (s *Scorer) Score(summary string, vocab Vocabulary) int {
	score := 0
	s.terms(summary, func(term string) {
		if vocab.Contains(term) {
			score++
		}
	})
	return score
}
