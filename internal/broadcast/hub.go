package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/svssathvik7/catalog-pollings-backend/internal/adapter/metrics"
	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
)

const (
	DefaultBufferSize        = 100
	DefaultKeepAliveInterval = 5 * time.Second
	DefaultMaxSubscribers    = 10000
)

var (
	ErrHubFull    = errors.New("broadcast: subscriber limit reached")
	ErrHubStopped = errors.New("broadcast: hub stopped")
)

// drop reasons
const (
	reasonSlow     = "slow"
	reasonClosed   = "closed"
	reasonShutdown = "shutdown"
)

type Options struct {
	BufferSize        int
	KeepAliveInterval time.Duration
	MaxSubscribers    int
	Clock             clockwork.Clock
	Metrics           *metrics.HubMetrics
}

// Hub is the registry of live subscribers. The mutex is held for registry bookkeeping and
// non-blocking channel sends only.
type Hub struct {
	mu          sync.Mutex
	subscribers map[uuid.UUID]*Subscription
	stopped     bool

	bufferSize     int
	maxSubscribers int
	interval       time.Duration
	clock          clockwork.Clock
	metrics        *metrics.HubMetrics

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHub creates a hub and starts its keep-alive sweeper. Stop must be called at shutdown.
func NewHub(opts Options) *Hub {
	if opts.BufferSize < 1 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.KeepAliveInterval <= 0 {
		opts.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if opts.MaxSubscribers < 1 {
		opts.MaxSubscribers = DefaultMaxSubscribers
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewHubMetrics(prometheus.NewRegistry())
	}

	h := &Hub{
		subscribers:    make(map[uuid.UUID]*Subscription),
		bufferSize:     opts.BufferSize,
		maxSubscribers: opts.MaxSubscribers,
		interval:       opts.KeepAliveInterval,
		clock:          opts.Clock,
		metrics:        opts.Metrics,
		stopCh:         make(chan struct{}),
	}
	h.startSweeper()
	return h
}

type subscribeConfig struct {
	pollID string
}

type SubscribeOption func(*subscribeConfig)

// ForPoll restricts a subscription to frames about one poll. Keep-alives are always delivered.
func ForPoll(pollID string) SubscribeOption {
	return func(c *subscribeConfig) {
		c.pollID = pollID
	}
}

// Subscribe registers a new subscriber. Its first frame is always the connected frame.
func (h *Hub) Subscribe(opts ...SubscribeOption) (*Subscription, error) {
	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		h.metrics.Rejected.Inc()
		return nil, ErrHubStopped
	}
	if len(h.subscribers) >= h.maxSubscribers {
		h.metrics.Rejected.Inc()
		return nil, ErrHubFull
	}

	sub := &Subscription{
		id:     uuid.New(),
		pollID: cfg.pollID,
		ch:     make(chan Frame, h.bufferSize),
		hub:    h,
	}
	sub.ch <- connectedFrame
	h.subscribers[sub.id] = sub
	h.metrics.Subscribers.Set(float64(len(h.subscribers)))

	slog.Debug("Subscriber registered", "subscriber_id", sub.id.String(), "poll_id", cfg.pollID, "subscribers", len(h.subscribers))
	return sub, nil
}

// Publish delivers a results frame to every interested subscriber.
func (h *Hub) Publish(view domain.ResultsView) {
	data, err := json.Marshal(view)
	if err != nil {
		slog.Error("Failed to encode results frame", "poll_id", view.PollID, "error", err)
		return
	}
	h.broadcast(Frame{Event: EventResults, PollID: view.PollID, Data: data})
}

// PublishDeleted tells interested subscribers that a poll is gone.
func (h *Hub) PublishDeleted(pollID string) {
	data, err := json.Marshal(map[string]string{"poll_id": pollID})
	if err != nil {
		slog.Error("Failed to encode delete frame", "poll_id", pollID, "error", err)
		return
	}
	h.broadcast(Frame{Event: EventDeleted, PollID: pollID, Data: data})
}

// Sweep sends one keep-alive frame to every subscriber, dropping those that cannot take it.
func (h *Hub) Sweep() {
	h.broadcast(pingFrame)
}

func (h *Hub) broadcast(f Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for id, sub := range h.subscribers {
		if !f.KeepAlive() && sub.pollID != "" && sub.pollID != f.PollID {
			continue
		}
		select {
		case sub.ch <- f:
			delivered++
		default:
			h.dropLocked(id, reasonSlow)
		}
	}
	h.metrics.FramesPublished.WithLabelValues(f.Event).Add(float64(delivered))
}

// Len returns the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *Hub) remove(id uuid.UUID, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(id, reason)
}

func (h *Hub) dropLocked(id uuid.UUID, reason string) {
	sub, ok := h.subscribers[id]
	if !ok {
		return
	}
	delete(h.subscribers, id)
	close(sub.ch)
	h.metrics.Dropped.WithLabelValues(reason).Inc()
	h.metrics.Subscribers.Set(float64(len(h.subscribers)))

	if reason == reasonSlow {
		slog.Warn("Dropping slow subscriber", "subscriber_id", id.String(), "poll_id", sub.pollID)
	}
}

func (h *Hub) startSweeper() {
	ticker := h.clock.NewTicker(h.interval)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				h.Sweep()
			case <-h.stopCh:
				return
			}
		}
	}()
}

// Stop closes every subscriber channel, refuses new subscribers and stops the sweeper.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)

		h.mu.Lock()
		h.stopped = true
		n := len(h.subscribers)
		for id := range h.subscribers {
			h.dropLocked(id, reasonShutdown)
		}
		h.mu.Unlock()

		slog.Info("Broadcast hub stopped", "disconnected_subscribers", n)
	})
	h.wg.Wait()
}

// Subscription is one subscriber's handle on the hub.
type Subscription struct {
	id     uuid.UUID
	pollID string
	ch     chan Frame
	hub    *Hub
}

func (s *Subscription) ID() uuid.UUID { return s.id }

// Frames returns the delivery channel. It is closed when the subscriber is dropped.
func (s *Subscription) Frames() <-chan Frame { return s.ch }

// Close unregisters the subscriber. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s.id, reasonClosed)
}

// Stream yields frames until ctx ends, the hub drops the subscriber or the consumer stops.
// The subscription is closed when iteration ends, so a stream can only be consumed once.
func (s *Subscription) Stream(ctx context.Context) iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		defer s.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case f, ok := <-s.ch:
				if !ok || !yield(f) {
					return
				}
			}
		}
	}
}
