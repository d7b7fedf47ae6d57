package app

import (
	"context"
	"sync"
	"time"

	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
)

type mockCache struct {
	getFn        func(ctx context.Context, pollID string) (domain.ResultsView, bool)
	setFn        func(ctx context.Context, view domain.ResultsView)
	fillFn       func(ctx context.Context, view domain.ResultsView)
	invalidateFn func(ctx context.Context, pollID string)
}

func (m *mockCache) Get(ctx context.Context, pollID string) (domain.ResultsView, bool) {
	if m.getFn != nil {
		return m.getFn(ctx, pollID)
	}
	return domain.ResultsView{}, false
}

func (m *mockCache) Set(ctx context.Context, view domain.ResultsView) {
	if m.setFn != nil {
		m.setFn(ctx, view)
	}
}

func (m *mockCache) Fill(ctx context.Context, view domain.ResultsView) {
	if m.fillFn != nil {
		m.fillFn(ctx, view)
	}
}

func (m *mockCache) Invalidate(ctx context.Context, pollID string) {
	if m.invalidateFn != nil {
		m.invalidateFn(ctx, pollID)
	}
}

type mockBroadcaster struct {
	mu        sync.Mutex
	published []domain.ResultsView
	deleted   []string
}

func (m *mockBroadcaster) Publish(view domain.ResultsView) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, view)
}

func (m *mockBroadcaster) PublishDeleted(pollID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, pollID)
}

type mockOptionStore struct {
	domain.OptionStore
	deleteOrphansFn func(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error)
}

func (m *mockOptionStore) DeleteOrphanOptions(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error) {
	return m.deleteOrphansFn(ctx, cutoff, dryRun)
}
