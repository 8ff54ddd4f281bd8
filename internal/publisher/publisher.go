// Package publisher runs the sampling loop and publishes the latest table
// view for concurrent readers.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"procwatch/internal/collector"
	"procwatch/internal/engine"
	"procwatch/internal/rates"
)

// Sampler takes one snapshot of the process table.
type Sampler interface {
	Sample(ctx context.Context) (collector.Snapshot, error)
}

// TickObserver is told about every successfully derived record set.
// ObserveTick must not block.
type TickObserver interface {
	ObserveTick(at time.Time, records []rates.ProcessRecord)
}

// Publisher owns the engine and the rate tracker. Sampling and Dispatch
// are serialized; CurrentView never blocks.
type Publisher struct {
	sampler  Sampler
	tracker  *rates.Tracker
	engine   *engine.Engine
	cadence  time.Duration
	cfg      Config
	logger   *slog.Logger
	observer TickObserver

	mu       sync.Mutex // guards engine, tracker, failures, stale
	failures int
	stale    bool
	view     atomic.Pointer[engine.View]
	host     atomic.Pointer[collector.HostInfo]

	kick chan struct{}

	runMu   sync.Mutex
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger used for sampling failures.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithObserver registers a TickObserver.
func WithObserver(o TickObserver) Option {
	return func(p *Publisher) { p.observer = o }
}

// New creates a publisher. The initial view is empty until the first
// successful sample.
func New(s Sampler, cc collector.CollectorConfig, ec engine.Config, cfg Config, opts ...Option) (*Publisher, error) {
	if s == nil {
		return nil, errors.New("sampler is required")
	}
	if err := cc.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	eng, err := engine.New(ec)
	if err != nil {
		return nil, err
	}

	p := &Publisher{
		sampler: s,
		tracker: rates.NewTracker(cc.NormalizeCPU),
		engine:  eng,
		cadence: cc.Cadence,
		cfg:     cfg,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		kick:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}

	v := eng.View()
	p.view.Store(&v)
	return p, nil
}

// CurrentView returns the most recently published view.
func (p *Publisher) CurrentView() engine.View {
	return *p.view.Load()
}

// Host returns the most recently reported host facts, zero until a sample
// carried them.
func (p *Publisher) Host() collector.HostInfo {
	if h := p.host.Load(); h != nil {
		return *h
	}
	return collector.HostInfo{}
}

// Dispatch applies an interaction event and publishes the resulting view
// before returning it. On error the published view is unchanged.
func (p *Publisher) Dispatch(ev engine.Event) (engine.View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, err := p.engine.Dispatch(ev)
	if err != nil {
		return p.CurrentView(), err
	}
	return p.publish(v), nil
}

// Start begins periodic sampling at the configured cadence.
func (p *Publisher) Start(ctx context.Context) error {
	p.runMu.Lock()
	if p.running {
		p.runMu.Unlock()
		return errors.New("publisher already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.wg.Add(2)
	p.runMu.Unlock()

	go p.ticker(ctx)
	go p.loop(ctx)
	return nil
}

// Stop cancels sampling and waits for the loop to exit. A sample still in
// flight is discarded.
func (p *Publisher) Stop() {
	p.runMu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.running = false
	p.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

// Trigger requests a sample as soon as the loop is free. Requests made
// while one is already pending are coalesced.
func (p *Publisher) Trigger() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// RefreshOnce samples synchronously and publishes the result.
func (p *Publisher) RefreshOnce(ctx context.Context) (engine.View, error) {
	err := p.execute(ctx)
	return p.CurrentView(), err
}

func (p *Publisher) ticker(ctx context.Context) {
	defer p.wg.Done()
	p.Trigger()

	t := time.NewTicker(p.cadence)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.Trigger()
		}
	}
}

func (p *Publisher) loop(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.kick:
			if err := p.execute(ctx); err != nil && ctx.Err() == nil {
				p.logger.Warn("sampling tick failed", "error", err)
			}
		}
	}
}

func (p *Publisher) execute(ctx context.Context) error {
	snap, err := p.sampler.Sample(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.failures++
		if p.failures >= p.cfg.StaleAfter && !p.stale {
			p.stale = true
			p.logger.Warn("view marked stale", "consecutive_failures", p.failures)
			p.publish(p.engine.View())
		}
		return fmt.Errorf("sample processes: %w", err)
	}

	records, err := p.tracker.Update(snap)
	if err != nil {
		// Clock went backwards or stood still; keep the prior view.
		return fmt.Errorf("derive rates: %w", err)
	}

	p.failures = 0
	p.stale = false
	if snap.Host.Known() {
		host := snap.Host
		p.host.Store(&host)
	}
	v := p.engine.SetRecords(records)
	v.UpdatedAt = snap.TakenAt
	p.publish(v)

	if p.observer != nil {
		p.observer.ObserveTick(snap.TakenAt, records)
	}
	return nil
}

// publish stamps v with the sampler-derived fields and stores it. Callers
// hold p.mu.
func (p *Publisher) publish(v engine.View) engine.View {
	if v.UpdatedAt.IsZero() {
		if cur := p.view.Load(); cur != nil {
			v.UpdatedAt = cur.UpdatedAt
		}
	}
	v.Stale = p.stale
	p.view.Store(&v)
	return v
}
