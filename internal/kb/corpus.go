// Package kb holds the pharmacy's drug-safety reference: a small embedded
// corpus of interaction and side-effect notes, searched by term overlap.
// Queries about combining medicines are answered from here rather than left
// to the chat model's unverified recall.
package kb

import (
	"sort"
	"strings"

	_ "embed"
)

// NoMatch is returned when no corpus section is relevant to the query.
const NoMatch = "No relevant information found in the knowledge base."

// topK bounds how many sections a query returns.
const topK = 2

//go:embed drug_interactions.txt
var defaultCorpus string

type section struct {
	text  string
	terms map[string]struct{}
}

// Corpus is a searchable set of reference sections.  Sections are ranked by
// how many of the query's terms they contain; the top two are returned.
type Corpus struct {
	sections []section
}

// NewCorpus loads the embedded drug-interactions reference.
func NewCorpus() *Corpus { return Parse(defaultCorpus) }

// Parse builds a corpus from raw text.  Sections are separated by blank
// lines, one topic per section.
func Parse(text string) *Corpus {
	c := &Corpus{}
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		c.sections = append(c.sections, section{text: block, terms: tokenize(block)})
	}
	return c
}

// Query returns the most relevant sections joined by blank lines, or NoMatch
// when nothing in the corpus shares a term with the query.
func (c *Corpus) Query(query string) string {
	qterms := tokenize(query)
	type scored struct {
		idx   int
		score int
	}
	var hits []scored
	for i, s := range c.sections {
		score := 0
		for t := range qterms {
			if _, ok := s.terms[t]; ok {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{idx: i, score: score})
		}
	}
	if len(hits) == 0 {
		return NoMatch
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = c.sections[h.idx].text
	}
	return strings.Join(parts, "\n\n")
}

// tokenize lowercases and splits on non-alphanumerics, dropping short words
// that would match everything.
func tokenize(text string) map[string]struct{} {
	terms := map[string]struct{}{}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	for _, w := range words {
		if len(w) <= 3 {
			continue
		}
		terms[w] = struct{}{}
	}
	return terms
}
