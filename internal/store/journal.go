package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/eventbind/internal/ir"
)

// Journal records engine observations into one run of a Store. It
// satisfies engine.Observer.
//
// Observe buffers in memory; Flush writes the buffer in one transaction.
// With a flush threshold, Observe flushes on its own once the buffer
// reaches it; a failure there is logged and returned by the next Flush.
//
// Thread-safety: all methods are safe for concurrent use.
type Journal struct {
	store     *Store
	run       Run
	logger    *slog.Logger
	threshold int

	mu  sync.Mutex
	buf []ir.Observation
	err error
}

// JournalOption configures a Journal.
type JournalOption func(*Journal)

// WithJournalLogger sets the logger for flush failures.
func WithJournalLogger(logger *slog.Logger) JournalOption {
	return func(j *Journal) {
		j.logger = logger
	}
}

// WithFlushThreshold flushes automatically once n observations are
// buffered. Zero (the default) leaves flushing to the caller.
func WithFlushThreshold(n int) JournalOption {
	return func(j *Journal) {
		j.threshold = n
	}
}

// NewJournal starts a new run named name in s.
func NewJournal(ctx context.Context, s *Store, name string, opts ...JournalOption) (*Journal, error) {
	run, err := s.CreateRun(ctx, name)
	if err != nil {
		return nil, err
	}
	j := &Journal{
		store:  s,
		run:    run,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Run returns the journal's run.
func (j *Journal) Run() Run { return j.run }

// Observe buffers o.
func (j *Journal) Observe(o ir.Observation) {
	j.mu.Lock()
	j.buf = append(j.buf, o)
	full := j.threshold > 0 && len(j.buf) >= j.threshold
	j.mu.Unlock()

	if !full {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.flush(context.Background()); err != nil {
		j.err = err
		j.logger.Error("journal flush failed",
			"run", j.run.ID,
			"pending", len(j.buf),
			"error", err)
	}
}

// Flush writes buffered observations. On failure the batch stays buffered
// and the error is returned; an earlier automatic flush failure is
// returned once even when this flush succeeds.
func (j *Journal) Flush(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.flush(ctx); err != nil {
		return err
	}
	err := j.err
	j.err = nil
	return err
}

// flush must be called with mu held.
func (j *Journal) flush(ctx context.Context) error {
	if err := j.store.WriteObservations(ctx, j.run.ID, j.buf); err != nil {
		return err
	}
	j.buf = nil
	return nil
}

// Pending returns the number of buffered observations.
func (j *Journal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.buf)
}
