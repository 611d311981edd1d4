package rpc

import (
	"context"

	"github.com/pai-dev/pai-go/pkg/network"
)

// SearchArgs is the search argument schema.
type SearchArgs struct {
	Query string `json:"query"`
}

// SearchResponse is the search result schema.
type SearchResponse struct {
	Results []string `json:"results"`
}

// SearchService exposes the filesystem index as the `search` method.
type SearchService struct {
	search network.Searcher
}

// NewSearchService returns a SearchService backed by the given index.
func NewSearchService(search network.Searcher) *SearchService {
	return &SearchService{search: search}
}

// RegisterEndpoints implements the Service interface.
func (s *SearchService) RegisterEndpoints(r Registry) error {
	return r.Register("search", s.doSearch)
}

func (s *SearchService) doSearch(ctx context.Context, caller string, req *Message) (any, error) {
	var args SearchArgs
	if err := req.UnmarshalArgs(&args); err != nil {
		return nil, err
	}
	results, err := s.search.Search(ctx, args.Query)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []string{}
	}
	return SearchResponse{Results: results}, nil
}
