package app

import (
	"context"

	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ResultsService serves results views for the query path: cache first, then one
// projection per poll no matter how many requests miss at once.
type ResultsService struct {
	projector *Projector
	cache     domain.ResultsCache
	group     singleflight.Group
}

func NewResultsService(projector *Projector, cache domain.ResultsCache) *ResultsService {
	return &ResultsService{projector: projector, cache: cache}
}

func (s *ResultsService) Get(ctx context.Context, pollID string) (domain.ResultsView, error) {
	if view, ok := s.cache.Get(ctx, pollID); ok {
		return view, nil
	}

	v, err, _ := s.group.Do(pollID, func() (any, error) {
		view, err := s.projector.ComputeResults(ctx, pollID)
		if err != nil {
			return nil, err
		}
		s.cache.Fill(ctx, view)
		return view, nil
	})
	if err != nil {
		return domain.ResultsView{}, err
	}
	return v.(domain.ResultsView), nil
}

// NopCache caches nothing; every read goes to the projector.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (domain.ResultsView, bool) { return domain.ResultsView{}, false }
func (NopCache) Set(context.Context, domain.ResultsView) {}
func (NopCache) Fill(context.Context, domain.ResultsView) {}
func (NopCache) Invalidate(context.Context, string) {}
