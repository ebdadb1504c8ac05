package link

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cinbrain/shortlinks/internal/cache"
)

const clickQueueKey = "clicks:queue"

// ClickQueue records clicks by pushing slugs onto a list on the shared
// volatile store. Recording never blocks the response path: when the store
// is unavailable the click is dropped and logged. Undercounting is an
// accepted property of click analytics.
type ClickQueue struct {
	store  cache.Store
	logger *slog.Logger
}

var _ ClickRecorder = (*ClickQueue)(nil)

// NewClickQueue creates a queue on the shared cache handle.
func NewClickQueue(store cache.Store, logger *slog.Logger) *ClickQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClickQueue{store: store, logger: logger}
}

// Record enqueues one click for slug. The push is detached from the caller's
// cancellation: a client disconnecting right after the redirect must not
// un-count the click it already caused.
func (q *ClickQueue) Record(ctx context.Context, slug string) {
	if err := q.store.RPush(context.WithoutCancel(ctx), clickQueueKey, slug); err != nil {
		q.logger.Debug("click dropped, queue unavailable", "slug", slug, "error", err)
	}
}

// Drain pops up to max pending slugs from the queue.
func (q *ClickQueue) Drain(ctx context.Context, max int) ([]string, error) {
	slugs, err := q.store.LPopCount(ctx, clickQueueKey, max)
	if err != nil {
		return nil, fmt.Errorf("drain click queue: %w", err)
	}
	return slugs, nil
}

// Pending returns the queue depth, for health reporting.
func (q *ClickQueue) Pending(ctx context.Context) (int64, error) {
	return q.store.LLen(ctx, clickQueueKey)
}

// ClickCounterConfig holds configuration for the click counter workers.
type ClickCounterConfig struct {
	Workers      int           // concurrent increment workers (default 2)
	BatchSize    int           // slugs popped per drain (default 100)
	PollInterval time.Duration // delay between drains of an empty queue (default 1s)
	OpTimeout    time.Duration // per-increment database timeout (default 5s)
}

func (c *ClickCounterConfig) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = 5 * time.Second
	}
}

// ClickCounter drains the click queue with a bounded pool of workers and
// applies increments to the durable store. It runs outside any request
// lifetime and uses its own repository handle; a caller disconnecting after
// a redirect never cancels the increment already queued for it.
type ClickCounter struct {
	queue  *ClickQueue
	repo   Repository
	config ClickCounterConfig
	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewClickCounter creates a ClickCounter. Call Start to begin draining.
func NewClickCounter(queue *ClickQueue, repo Repository, config *ClickCounterConfig, logger *slog.Logger) *ClickCounter {
	cfg := ClickCounterConfig{}
	if config != nil {
		cfg = *config
	}
	cfg.applyDefaults()

	if logger == nil {
		logger = slog.Default()
	}

	return &ClickCounter{
		queue:  queue,
		repo:   repo,
		config: cfg,
		logger: logger,
	}
}

// Start launches the worker pool. It is an error to start a running counter.
func (c *ClickCounter) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("click counter already running")
	}
	c.running = true

	workerCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	for i := 0; i < c.config.Workers; i++ {
		c.wg.Add(1)
		go func(id int) {
			defer c.wg.Done()
			c.run(workerCtx, id)
		}(i + 1)
	}

	c.logger.Info("click counter started", "workers", c.config.Workers)
	return nil
}

// Stop cancels the workers and waits for them, bounded by ctx.
func (c *ClickCounter) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	cancel := c.cancel
	c.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("click counter stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ClickCounter) run(ctx context.Context, id int) {
	logger := c.logger.With("worker", id)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		slugs, err := c.queue.Drain(ctx, c.config.BatchSize)
		if err != nil || len(slugs) == 0 {
			// Unavailable queue and empty queue back off the same way.
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.config.PollInterval):
			}
			continue
		}

		// Collapse repeats of the same slug into one update per batch.
		deltas := make(map[string]int64, len(slugs))
		order := make([]string, 0, len(slugs))
		for _, slug := range slugs {
			if _, seen := deltas[slug]; !seen {
				order = append(order, slug)
			}
			deltas[slug]++
		}

		for _, slug := range order {
			c.increment(ctx, logger, slug, deltas[slug])
		}
	}
}

// increment applies delta clicks for one slug. Errors are logged and the
// clicks are lost; there is no retry and no dead-letter path.
func (c *ClickCounter) increment(ctx context.Context, logger *slog.Logger, slug string, delta int64) {
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.OpTimeout)
	defer cancel()

	if err := c.repo.IncrementClicks(opCtx, slug, delta); err != nil {
		logger.Warn("failed to increment clicks", "slug", slug, "clicks", delta, "error", err)
		return
	}
	logger.Debug("clicks recorded", "slug", slug, "clicks", delta)
}
