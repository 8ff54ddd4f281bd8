// Package database records sampling ticks to the history store off the
// sampling path.
package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"procwatch/internal/collector"
	"procwatch/internal/database/relational"
	"procwatch/internal/output"
	"procwatch/internal/rates"
)

// TickStore persists ticks. *relational.Repo implements it.
type TickStore interface {
	InsertTick(ctx context.Context, sessionID int64, p output.TickPayload) (relational.InsertResult, error)
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// RecorderConfig controls how often ticks are written and how long they are kept.
type RecorderConfig struct {
	Every     time.Duration `yaml:"every"`     // Minimum spacing between recorded ticks (default: 5s)
	Retention time.Duration `yaml:"retention"` // Ticks older than this are pruned, 0 keeps everything (default: 24h)
}

func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{Every: 5 * time.Second, Retention: 24 * time.Hour}
}

// Validate checks if the configuration is valid and returns an error if not.
func (c RecorderConfig) Validate() error {
	if c.Every < 0 {
		return &collector.ConfigError{Field: "Every", Message: "must not be negative"}
	}
	if c.Retention < 0 {
		return &collector.ConfigError{Field: "Retention", Message: "must not be negative"}
	}
	return nil
}

type tick struct {
	at      time.Time
	records []rates.ProcessRecord
}

// Recorder is a TickObserver that hands ticks to a background writer
// through a one-element slot. A tick that has not been written yet is
// replaced by a newer one, so a slow disk never stalls sampling.
type Recorder struct {
	store     TickStore
	flagger   output.DataFlagger
	sessionID int64
	cfg       RecorderConfig
	logger    *slog.Logger

	slot chan tick

	obsMu    sync.Mutex
	accepted time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// NewRecorder creates a new recorder. flg may be nil, logger may be nil.
func NewRecorder(store TickStore, flg output.DataFlagger, sessionID int64, cfg RecorderConfig, logger *slog.Logger) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("tick store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Recorder{
		store:     store,
		flagger:   flg,
		sessionID: sessionID,
		cfg:       cfg,
		logger:    logger,
		slot:      make(chan tick, 1),
	}, nil
}

// ObserveTick queues a tick for writing. It never blocks.
func (w *Recorder) ObserveTick(at time.Time, records []rates.ProcessRecord) {
	w.obsMu.Lock()
	defer w.obsMu.Unlock()

	if !w.accepted.IsZero() && at.Sub(w.accepted) < w.cfg.Every {
		return
	}
	w.accepted = at

	t := tick{at: at, records: records}
	for {
		select {
		case w.slot <- t:
			return
		default:
		}
		// Drop the unwritten older tick.
		select {
		case <-w.slot:
		default:
		}
	}
}

// Start begins the background write loop.
func (w *Recorder) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("recorder already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	w.mu.Unlock()

	go w.loop(ctx)
	return nil
}

// Stop stops the loop and writes a tick still waiting in the slot.
func (w *Recorder) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.running = false
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()

	ctx, cancelFlush := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFlush()
	if err := w.PullOnce(ctx); err != nil {
		w.logger.Warn("final history write failed", "error", err)
	}
}

// PullOnce writes the pending tick, if any, immediately.
func (w *Recorder) PullOnce(ctx context.Context) error {
	select {
	case t := <-w.slot:
		return w.execute(ctx, t)
	default:
		return nil
	}
}

func (w *Recorder) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-w.slot:
			if err := w.execute(ctx, t); err != nil {
				w.logger.Warn("history write failed", "error", err)
			}
		}
	}
}

func (w *Recorder) execute(ctx context.Context, t tick) error {
	payload := output.BuildPayload(t.at, t.records, w.flagger)

	res, err := w.store.InsertTick(ctx, w.sessionID, payload)
	if err != nil {
		return fmt.Errorf("persist tick: %w", err)
	}
	w.logger.Debug("tick recorded", "tick_id", res.TickID, "rows", res.Rows)

	if w.cfg.Retention > 0 {
		if _, err := w.store.Prune(ctx, t.at.Add(-w.cfg.Retention)); err != nil {
			return fmt.Errorf("prune history: %w", err)
		}
	}
	return nil
}
