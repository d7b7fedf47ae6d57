package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/svssathvik7/catalog-pollings-backend/internal/adapter/metrics"
	"github.com/svssathvik7/catalog-pollings-backend/internal/domain"
	"github.com/svssathvik7/catalog-pollings-backend/internal/platform/correlation"
)

const (
	// OrphanGrace keeps options of in-flight creates out of reach of the sweep.
	OrphanGrace        = 10 * time.Minute
	orphanSweepTimeout = 30 * time.Second
)

// OptionJanitor periodically removes options that no poll references, such as the
// leftovers of a best-effort option delete.
type OptionJanitor struct {
	options  domain.OptionStore
	clock    clockwork.Clock
	interval time.Duration
	grace    time.Duration
	metrics  *metrics.PollMetrics

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewOptionJanitor(options domain.OptionStore, clock clockwork.Clock, interval time.Duration, m *metrics.PollMetrics) *OptionJanitor {
	return &OptionJanitor{
		options:  options,
		clock:    clock,
		interval: interval,
		grace:    OrphanGrace,
		metrics:  m,
		stopCh:   make(chan struct{}),
	}
}

// Sweep runs one pass and returns how many options were removed.
func (j *OptionJanitor) Sweep(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, orphanSweepTimeout)
	defer cancel()

	cutoff := j.clock.Now().Add(-j.grace)
	n, err := j.options.DeleteOrphanOptions(ctx, cutoff, false)
	if err != nil {
		return 0, err
	}
	j.metrics.OrphansPurged.Add(float64(n))
	return n, nil
}

// Start launches the sweep loop.
func (j *OptionJanitor) Start() {
	ticker := j.clock.NewTicker(j.interval)
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				ctx := correlation.WithID(context.Background(), correlation.NewID())
				n, err := j.Sweep(ctx)
				if err != nil {
					slog.ErrorContext(ctx, "Orphan option sweep failed", "error", err)
					continue
				}
				if n > 0 {
					slog.InfoContext(ctx, "Removed orphan options", "count", n)
				}
			case <-j.stopCh:
				return
			}
		}
	}()
	slog.Info("Orphan option janitor started", "interval", j.interval.String())
}

// Stop ends the loop and waits for an in-flight sweep.
func (j *OptionJanitor) Stop() {
	j.stopOnce.Do(func() {
		close(j.stopCh)
	})
	j.wg.Wait()
}
