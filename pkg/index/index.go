// Package index implements the inverted filesystem index behind the
// manager `search` action.
package index

import (
	"sort"
	"strings"
	"sync"
)

// Index maps lowercased words to the paths they were seen in. Readers and
// the crawler share it, all access goes through the lock.
type Index struct {
	mtx   sync.RWMutex
	terms map[string]map[string]struct{}
}

// New returns an empty index.
func New() *Index {
	return &Index{
		terms: make(map[string]map[string]struct{}),
	}
}

// Add indexes path under every word of the tag.
func (x *Index) Add(tag string, path string) *Index {
	x.mtx.Lock()
	defer x.mtx.Unlock()
	for _, word := range strings.Fields(strings.ToLower(tag)) {
		paths, ok := x.terms[word]
		if !ok {
			paths = make(map[string]struct{})
			x.terms[word] = paths
		}
		paths[path] = struct{}{}
	}
	return x
}

// Retrieve returns one sorted posting list per query word.
func (x *Index) Retrieve(query string) [][]string {
	x.mtx.RLock()
	defer x.mtx.RUnlock()
	words := strings.Fields(strings.ToLower(query))
	results := make([][]string, 0, len(words))
	for _, word := range words {
		paths := make([]string, 0, len(x.terms[word]))
		for p := range x.terms[word] {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		results = append(results, paths)
	}
	return results
}

// Len returns the number of indexed terms.
func (x *Index) Len() int {
	x.mtx.RLock()
	defer x.mtx.RUnlock()
	return len(x.terms)
}

// Snapshot copies the index contents for persistence.
func (x *Index) Snapshot() map[string][]string {
	x.mtx.RLock()
	defer x.mtx.RUnlock()
	snap := make(map[string][]string, len(x.terms))
	for term, paths := range x.terms {
		list := make([]string, 0, len(paths))
		for p := range paths {
			list = append(list, p)
		}
		sort.Strings(list)
		snap[term] = list
	}
	return snap
}

// Load merges previously persisted contents into the index.
func (x *Index) Load(terms map[string][]string) {
	x.mtx.Lock()
	defer x.mtx.Unlock()
	for term, list := range terms {
		paths, ok := x.terms[term]
		if !ok {
			paths = make(map[string]struct{}, len(list))
			x.terms[term] = paths
		}
		for _, p := range list {
			paths[p] = struct{}{}
		}
	}
}
