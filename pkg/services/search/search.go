// Package search answers the manager `search` action by intersecting index
// lookups.
package search

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/pai-dev/pai-go/pkg/index"
)

const cacheSize = 128

// Service answers search queries from the inverted index, keeping an LRU
// cache of recent query results.
type Service struct {
	index *index.Index
	cache *lru.Cache
	log   *zap.Logger
}

// New returns a search service over the given index.
func New(x *index.Index, log *zap.Logger) (*Service, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{
		index: x,
		cache: cache,
		log:   log,
	}, nil
}

// Search returns the paths matching every word of the query.
func (s *Service) Search(ctx context.Context, query string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cached, ok := s.cache.Get(query); ok {
		return cached.([]string), nil
	}
	results := intersect(s.index.Retrieve(query))
	s.cache.Add(query, results)
	s.log.Debug("search", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

// Invalidate drops the cached results. Crawl passes do not call it: results
// cached before a pass are served until they are evicted or Invalidate runs.
func (s *Service) Invalidate() {
	s.cache.Purge()
}

// intersect keeps the paths present in every posting list, in the order of
// the first list; no relevance ranking is applied.
func intersect(lists [][]string) []string {
	if len(lists) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, list := range lists {
		for _, p := range list {
			counts[p]++
		}
	}
	var result []string
	for _, p := range lists[0] {
		if counts[p] == len(lists) {
			result = append(result, p)
		}
	}
	return result
}
