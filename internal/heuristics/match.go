package heuristics

import (
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// keywordSet finds every keyword of a fixed table in one pass over the text.
// Matcher.Match keeps per-call counters inside the trie, so calls on a shared
// set are serialized.
type keywordSet struct {
	mu      sync.Mutex
	matcher *ahocorasick.Matcher
	words   []string
}

func newKeywordSet(words []string) *keywordSet {
	ks := &keywordSet{words: words}
	if len(words) > 0 {
		ks.matcher = ahocorasick.NewStringMatcher(words)
	}
	return ks
}

// hits returns the distinct keywords contained in text.
func (ks *keywordSet) hits(text string) []string {
	if ks == nil || ks.matcher == nil || text == "" {
		return nil
	}
	ks.mu.Lock()
	idx := ks.matcher.Match([]byte(text))
	ks.mu.Unlock()

	found := make([]string, 0, len(idx))
	seen := make(map[string]struct{}, len(idx))
	for _, i := range idx {
		if i < 0 || i >= len(ks.words) {
			continue
		}
		w := ks.words[i]
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		found = append(found, w)
	}
	return found
}

func (ks *keywordSet) any(text string) bool {
	return len(ks.hits(text)) > 0
}

func (ks *keywordSet) count(text string) int {
	return len(ks.hits(text))
}
