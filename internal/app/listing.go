package app

import (
	"context"

	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
)

type pageLimits struct {
	defaultPerPage int
	maxPerPage     int
}

var (
	liveLimits   = pageLimits{defaultPerPage: 10, maxPerPage: 10}
	closedLimits = pageLimits{defaultPerPage: 10, maxPerPage: 100}
	ownerLimits  = pageLimits{defaultPerPage: 5, maxPerPage: 100}
)

func (l pageLimits) clamp(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = l.defaultPerPage
	}
	return page, min(perPage, l.maxPerPage)
}

// Page is one page of a poll listing.
type Page struct {
	Polls      []domain.PollDetail `json:"polls"`
	Page       int                 `json:"page"`
	PerPage    int                 `json:"per_page"`
	TotalPolls int64               `json:"total_polls"`
	TotalPages int64               `json:"total_pages"`
}

// ListLive pages through open polls, most voted first.
func (e *Engine) ListLive(ctx context.Context, page, perPage int) (Page, error) {
	open := true
	return e.list(ctx, liveLimits, domain.PollQuery{Open: &open, SortBy: domain.SortByVotes}, page, perPage)
}

// ListClosed pages through closed polls, most voted first.
func (e *Engine) ListClosed(ctx context.Context, page, perPage int) (Page, error) {
	open := false
	return e.list(ctx, closedLimits, domain.PollQuery{Open: &open, SortBy: domain.SortByVotes}, page, perPage)
}

// ListByOwner pages through every poll owned by ownerID.
func (e *Engine) ListByOwner(ctx context.Context, ownerID string, sortBy domain.PollSort, ascending bool, page, perPage int) (Page, error) {
	q := domain.PollQuery{OwnerID: ownerID, SortBy: sortBy, Ascending: ascending}
	return e.list(ctx, ownerLimits, q, page, perPage)
}

func (e *Engine) list(ctx context.Context, limits pageLimits, q domain.PollQuery, page, perPage int) (Page, error) {
	q.Page, q.PerPage = limits.clamp(page, perPage)

	res, err := e.store.Polls().ListPolls(ctx, q)
	if err != nil {
		return Page{}, storeError("list polls", err)
	}

	polls := res.Polls
	if polls == nil {
		polls = []domain.PollDetail{}
	}
	per := int64(q.PerPage)
	return Page{
		Polls:      polls,
		Page:       q.Page,
		PerPage:    q.PerPage,
		TotalPolls: res.Total,
		TotalPages: (res.Total + per - 1) / per,
	}, nil
}
