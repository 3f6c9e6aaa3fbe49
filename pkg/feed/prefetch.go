package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/datafeedio/datafeed/pkg/errors"
	"github.com/datafeedio/datafeed/pkg/logger"
	"github.com/datafeedio/datafeed/pkg/metrics"
)

// defaultPollInterval bounds how long a consumer blocks on the queue before
// re-checking that a worker is alive.
const defaultPollInterval = time.Second

// fetchResult is the tagged unit carried through the handoff queue: a data
// or boundary item, or a failure captured in the worker.
type fetchResult struct {
	item Item
	err  error
}

// PrefetchSource decouples fetch latency from consumption: a background
// worker pulls items ahead of the consumer into a bounded handoff queue.
// Each refill run fetches at most the buffer size, and a new run starts only
// once consumption has drawn the queue down to a third of capacity,
// amortizing goroutine-start overhead against steady per-item consumption.
//
// Worker start is a single compare-and-swap transition, so at most one
// worker is alive per source at any instant. An error raised by the wrapped
// source is captured in the worker, relayed across the queue exactly once,
// and surfaces on the consumer's next call.
//
// The wrapped source is touched only by the worker once a run has started.
// Concurrent Next calls from multiple consumer goroutines are not
// supported. Call Close to stop the worker and release the source.
type PrefetchSource struct {
	src           DataSource
	bufferSize    int
	loadThreshold int
	pollInterval  time.Duration

	queue   chan fetchResult
	running atomic.Bool
	closed  atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *zap.Logger
}

// PrefetchOption configures a PrefetchSource.
type PrefetchOption func(*PrefetchSource)

// WithPollInterval overrides the consumer's queue-wait timeout.
func WithPollInterval(d time.Duration) PrefetchOption {
	return func(p *PrefetchSource) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// NewPrefetchSource wraps src with background read-ahead. The buffer size is
// both the handoff queue capacity and the per-run fetch budget; it must be
// positive.
func NewPrefetchSource(src DataSource, bufferSize int, opts ...PrefetchOption) (*PrefetchSource, error) {
	if bufferSize <= 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig,
			"buffer size must be positive, got %d", bufferSize)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &PrefetchSource{
		src:           src,
		bufferSize:    bufferSize,
		loadThreshold: bufferSize / 3,
		pollInterval:  defaultPollInterval,
		queue:         make(chan fetchResult, bufferSize),
		ctx:           ctx,
		cancel:        cancel,
		logger:        logger.With(zap.String("component", "prefetch")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Meta returns the ordered column names of the wrapped source.
func (p *PrefetchSource) Meta() []string {
	return p.src.Meta()
}

// Next returns the next buffered item, starting a refill run when the queue
// has drained to the load threshold and no worker is alive. It blocks on the
// queue with a short timeout, re-checking the worker on each wakeup, so a
// crashed or finished worker is always restarted rather than deadlocking the
// consumer. A relayed upstream error is returned exactly as the wrapped
// source raised it.
func (p *PrefetchSource) Next() (Item, error) {
	if p.closed.Load() {
		return Item{}, errors.New(errors.ErrorTypeClosed, "prefetch source is closed")
	}

	p.maybeStartWorker()
	for {
		select {
		case res := <-p.queue:
			metrics.PrefetchQueueDepth.Set(float64(len(p.queue)))
			if res.err != nil {
				metrics.PrefetchErrorsRelayed.Inc()
				return Item{}, res.err
			}
			return res.item, nil
		case <-time.After(p.pollInterval):
			if p.closed.Load() {
				return Item{}, errors.New(errors.ErrorTypeClosed, "prefetch source is closed")
			}
			p.maybeStartWorker()
		}
	}
}

// Close stops the background worker and joins it. It is idempotent. Items
// already buffered are discarded; subsequent Next calls fail with a closed
// error.
func (p *PrefetchSource) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.cancel()
	p.wg.Wait()
	p.logger.Debug("prefetch source closed")
	return nil
}

// maybeStartWorker starts a refill run if the queue has drained to the load
// threshold and no worker is alive. The compare-and-swap makes the
// check-then-start transition atomic: two callers can never start two
// workers for one source.
func (p *PrefetchSource) maybeStartWorker() {
	if len(p.queue) > p.loadThreshold {
		return
	}
	if p.closed.Load() {
		return
	}
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	p.wg.Add(1)
	metrics.PrefetchWorkerRuns.Inc()
	go p.fill()
}

// fill runs on the worker goroutine: up to bufferSize fetches from the
// wrapped source, each result handed off through the queue. The run ends
// early when the source raises (the error is enqueued, then the worker
// exits) or when the source is closed. A fetch already in flight cannot be
// interrupted; cancellation takes effect at the next handoff.
func (p *PrefetchSource) fill() {
	defer p.wg.Done()
	defer p.running.Store(false)

	loaded := 0
	for i := 0; i < p.bufferSize; i++ {
		item, err := p.src.Next()
		if err != nil {
			select {
			case p.queue <- fetchResult{err: err}:
				p.logger.Debug("prefetch run stopped on upstream error",
					zap.Int("loaded", loaded), zap.Error(err))
			case <-p.ctx.Done():
			}
			return
		}

		select {
		case p.queue <- fetchResult{item: item}:
			loaded++
			metrics.PrefetchQueueDepth.Set(float64(len(p.queue)))
		case <-p.ctx.Done():
			return
		}
	}
	p.logger.Debug("prefetch run finished", zap.Int("loaded", loaded))
}
