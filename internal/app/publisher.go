package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/svssathvik7/catalog-pollings-backend/internal/adapter/metrics"
	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
)

const publishTimeout = 2 * time.Second

// Broadcaster fans frames out to live subscribers without blocking.
type Broadcaster interface {
	Publish(view domain.ResultsView)
	PublishDeleted(pollID string)
}

// pollRun is the pending work of one poll. At most one goroutine drains it.
type pollRun struct {
	ctx     context.Context
	dirty   bool
	deleted bool
}

// ResultsPublisher turns poll events into fresh results on the cache and the hub.
//
// Events return immediately. Work for a poll runs on a single goroutine at a time, and
// changes that arrive while a projection is running collapse into one more pass, so the
// last view written for a poll is always computed after its last commit. A delete is
// applied after any projection in flight for the same poll.
type ResultsPublisher struct {
	projector *Projector
	cache     domain.ResultsCache
	hub       Broadcaster
	metrics   *metrics.PollMetrics

	mu      sync.Mutex
	idle    *sync.Cond
	pending map[string]*pollRun
}

var _ domain.PollEvents = (*ResultsPublisher)(nil)

func NewResultsPublisher(projector *Projector, cache domain.ResultsCache, hub Broadcaster, m *metrics.PollMetrics) *ResultsPublisher {
	p := &ResultsPublisher{
		projector: projector,
		cache:     cache,
		hub:       hub,
		metrics:   m,
		pending:   make(map[string]*pollRun),
	}
	p.idle = sync.NewCond(&p.mu)
	return p
}

func (p *ResultsPublisher) PollChanged(ctx context.Context, pollID string) {
	p.enqueue(ctx, pollID, func(r *pollRun) { r.dirty = true })
}

func (p *ResultsPublisher) PollDeleted(ctx context.Context, pollID string) {
	p.enqueue(ctx, pollID, func(r *pollRun) { r.deleted = true })
}

// Wait blocks until no poll has pending work.
func (p *ResultsPublisher) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.pending) > 0 {
		p.idle.Wait()
	}
}

func (p *ResultsPublisher) enqueue(ctx context.Context, pollID string, mark func(*pollRun)) {
	ctx = context.WithoutCancel(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if run, ok := p.pending[pollID]; ok {
		run.ctx = ctx
		mark(run)
		return
	}
	run := &pollRun{ctx: ctx}
	mark(run)
	p.pending[pollID] = run
	go p.drain(pollID, run)
}

func (p *ResultsPublisher) drain(pollID string, run *pollRun) {
	for {
		p.mu.Lock()
		ctx := run.ctx
		switch {
		case run.deleted:
			p.finish(pollID)
			p.mu.Unlock()
			p.publishDeleted(ctx, pollID)
			return
		case !run.dirty:
			p.finish(pollID)
			p.mu.Unlock()
			return
		}
		run.dirty = false
		p.mu.Unlock()

		p.publishResults(ctx, pollID)
	}
}

// finish must be called with p.mu held.
func (p *ResultsPublisher) finish(pollID string) {
	delete(p.pending, pollID)
	if len(p.pending) == 0 {
		p.idle.Broadcast()
	}
}

func (p *ResultsPublisher) publishResults(ctx context.Context, pollID string) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	view, err := p.projector.ComputeResults(ctx, pollID)
	if err != nil {
		if errors.Is(err, domain.ErrPollNotFound) {
			// Deleted between commit and projection; the delete event follows.
			slog.DebugContext(ctx, "Skipping results for vanished poll", "poll_id", pollID)
			return
		}
		p.metrics.NotifyFailure.WithLabelValues("project").Inc()
		slog.ErrorContext(ctx, "Failed to compute results for broadcast", "poll_id", pollID, "error", err)
		return
	}

	p.cache.Set(ctx, view)
	p.hub.Publish(view)
}

func (p *ResultsPublisher) publishDeleted(ctx context.Context, pollID string) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.cache.Invalidate(ctx, pollID)
	p.hub.PublishDeleted(pollID)
}
