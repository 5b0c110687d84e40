package poll

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Poller periodically invokes a fetch function and keeps the latest
// successful result as a snapshot.
//
// The cadence is a repeating timer measured from each fetch's scheduling,
// not a fetch-then-wait chain: a slow fetch does not delay the next one, so
// two fetches of the same resource can be in flight at once.  Each fetch is
// stamped with a monotonically increasing sequence number at issuance and
// results apply last-writer-wins by issuance order, so a stale response that
// arrives after a fresher one is discarded rather than clobbering it.
//
// A failed fetch leaves the previous snapshot in place.  Stop cancels the
// timer and discards the results of any fetches still in flight.
type Poller[T any] struct {
	fetch    func(ctx context.Context) (T, error)
	interval time.Duration
	logger   *zap.Logger

	mu         sync.Mutex
	last       T
	has        bool
	lastErr    error
	failStreak int
	everOK     bool
	seq        uint64 // issuance counter
	applied    uint64 // issuance seq of the published snapshot
	active     bool
	runCtx     context.Context
	cancel     context.CancelFunc
	onUpdate   func(T)
}

// New constructs a poller.  interval <= 0 means fetch once on Start and then
// only on explicit Refresh calls (used for on-demand resources).
func New[T any](fetch func(ctx context.Context) (T, error), interval time.Duration, logger *zap.Logger) *Poller[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller[T]{fetch: fetch, interval: interval, logger: logger}
}

// OnUpdate registers a callback invoked with every newly published snapshot.
// Must be set before Start.
func (p *Poller[T]) OnUpdate(fn func(T)) { p.onUpdate = fn }

// Start issues an immediate fetch and, when the interval is positive, keeps
// fetching on every tick until Stop or ctx cancellation.  Starting an active
// poller is a no-op.
func (p *Poller[T]) Start(ctx context.Context) {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.active = true
	p.runCtx = runCtx
	p.cancel = cancel
	p.mu.Unlock()

	p.issue(runCtx)
	if p.interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				p.issue(runCtx)
			}
		}
	}()
}

// Refresh issues one fetch out of band.  No-op when the poller is inactive.
func (p *Poller[T]) Refresh() {
	p.mu.Lock()
	ctx := p.runCtx
	active := p.active
	p.mu.Unlock()
	if !active || ctx == nil {
		return
	}
	p.issue(ctx)
}

// Stop cancels the timer.  In-flight fetches are allowed to finish but their
// results no longer change published state.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	p.active = false
	cancel := p.cancel
	p.cancel = nil
	p.runCtx = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Snapshot returns the latest published value.  The second return is false
// until the first successful fetch.
func (p *Poller[T]) Snapshot() (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.has
}

// LastError returns the error of the most recent failed fetch, or nil if
// the last completed fetch succeeded.
func (p *Poller[T]) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Degraded reports whether every fetch since activation has failed.  Used to
// surface a resource that never loaded; a transient failure with an older
// snapshot still on screen is not degraded.
func (p *Poller[T]) Degraded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.everOK && p.failStreak > 0
}

func (p *Poller[T]) issue(ctx context.Context) {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	go func() {
		v, err := p.fetch(ctx)
		p.mu.Lock()
		if !p.active {
			// Stopped while this fetch was in flight; discard.
			p.mu.Unlock()
			return
		}
		if seq < p.applied {
			// A fetch issued later has already published; this one is stale
			// whether it succeeded or failed.
			p.mu.Unlock()
			return
		}
		if err != nil {
			p.lastErr = err
			p.failStreak++
			p.mu.Unlock()
			p.logger.Warn("fetch failed, keeping previous snapshot", zap.Error(err))
			return
		}
		p.applied = seq
		p.last = v
		p.has = true
		p.lastErr = nil
		p.failStreak = 0
		p.everOK = true
		fn := p.onUpdate
		p.mu.Unlock()
		if fn != nil {
			fn(v)
		}
	}()
}
