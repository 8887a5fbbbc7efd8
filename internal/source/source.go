// Package source defines the Sampler capability implemented by every
// instrument and the Source that runs it: a one-shot initialization, an
// independent polling loop and an owned sample buffer drained once per
// reporting cycle.
package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/Guliveer/aerostat/internal/buffer"
	"github.com/Guliveer/aerostat/internal/metrics"
	"github.com/Guliveer/aerostat/internal/models"
)

// DefaultInterval is the polling interval used when a sampler reports none.
const DefaultInterval = time.Second

// Sampler is implemented by every concrete instrument, hardware-backed or
// derived.
type Sampler interface {
	// Initialize acquires the underlying resource. It is called at most once.
	Initialize(ctx context.Context) error

	// Interval returns how long to wait after a read before the next one.
	// It may change with the sampler's own readiness.
	Interval() time.Duration

	// Read performs exactly one measurement.
	Read(ctx context.Context) (models.Reading, error)
}

// Drainer is the read-and-clear view of a source used by the reporter and
// by derived samplers.
type Drainer interface {
	Name() string
	DrainAverage() (models.Average, bool)
}

// State is a source's initialization state.
type State int32

const (
	// Uninitialized is the state before Initialize runs.
	Uninitialized State = iota
	// Ready means the resource was acquired and the source may be polled.
	Ready
	// Failed means acquisition failed. The source is never retried.
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Source runs one Sampler. It owns a sample buffer that only its own
// polling loop appends to.
type Source struct {
	name    string
	sampler Sampler
	buf     *buffer.Buffer
	logger  *zap.Logger
	clock   clock.Clock

	initOnce sync.Once
	state    atomic.Int32
	running  atomic.Bool
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger. The source adds its name as a field.
func WithLogger(l *zap.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// WithClock sets the clock used between reads and to stamp averages.
func WithClock(c clock.Clock) Option {
	return func(s *Source) { s.clock = c }
}

// New creates an uninitialized source producing readings of the given shape.
func New(name string, shape models.Shape, sampler Sampler, opts ...Option) *Source {
	s := &Source{
		name:    name,
		sampler: sampler,
		logger:  zap.NewNop(),
		clock:   clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("source", name))
	s.buf = buffer.New(shape, s.logger, buffer.WithClock(s.clock))
	return s
}

// Name returns the stable name used as the sink tag.
func (s *Source) Name() string { return s.name }

// Shape returns the arity of the source's readings.
func (s *Source) Shape() models.Shape { return s.buf.Shape() }

// State returns the current initialization state.
func (s *Source) State() State { return State(s.state.Load()) }

// Pending returns the number of readings waiting for the next drain.
func (s *Source) Pending() int { return s.buf.Len() }

// Running reports whether the polling loop is active.
func (s *Source) Running() bool { return s.running.Load() }

// Initialize acquires the sampler's resource once. Later calls return the
// recorded state without touching the sampler again.
func (s *Source) Initialize(ctx context.Context) State {
	s.initOnce.Do(func() {
		if err := s.initialize(ctx); err != nil {
			s.setState(Failed)
			s.logger.Error("Failed to initialize source",
				zap.Error(&AcquisitionError{Source: s.name, Err: err}))
			return
		}
		s.setState(Ready)
		s.logger.Info("Source initialized")
	})
	return s.State()
}

func (s *Source) initialize(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return s.sampler.Initialize(ctx)
}

func (s *Source) setState(st State) {
	s.state.Store(int32(st))
	metrics.SourceState.WithLabelValues(s.name).Set(float64(st))
}

// Run polls the sampler until ctx is cancelled. A source that is not Ready
// when Run is called never starts polling.
func (s *Source) Run(ctx context.Context) error {
	if s.State() != Ready {
		s.logger.Warn("Source not initialized, skipping polling loop",
			zap.Stringer("state", s.State()))
		return ErrNotReady
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	s.logger.Debug("Starting polling loop")
	for {
		_ = s.Poll(ctx)

		interval := s.sampler.Interval()
		if interval <= 0 {
			interval = DefaultInterval
		}
		timer := s.clock.Timer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Debug("Polling loop stopped")
			return nil
		case <-timer.C:
		}
	}
}

// Poll performs one read cycle: read, then append on success. Failures are
// logged and returned; they never affect the next cycle.
func (s *Source) Poll(ctx context.Context) error {
	s.logger.Debug("Reading source")

	reading, err := s.read(ctx)
	switch {
	case errors.Is(err, ErrNoUpstreamData):
		metrics.ReadsTotal.WithLabelValues(s.name, metrics.ResultSkipped).Inc()
		s.logger.Debug("No upstream data yet, skipping read", zap.Error(err))
		return err
	case err != nil:
		metrics.ReadsTotal.WithLabelValues(s.name, metrics.ResultError).Inc()
		rerr := &ReadError{Source: s.name, Err: err}
		s.logger.Error("Error in read loop", zap.Error(rerr))
		return rerr
	}

	if err := s.buf.Append(reading); err != nil {
		metrics.ReadsTotal.WithLabelValues(s.name, metrics.ResultError).Inc()
		return &ReadError{Source: s.name, Err: err}
	}
	metrics.ReadsTotal.WithLabelValues(s.name, metrics.ResultOK).Inc()
	metrics.BufferDepth.WithLabelValues(s.name).Set(float64(s.buf.Len()))
	s.logger.Debug("Adding sample", zap.Stringer("value", reading))
	return nil
}

func (s *Source) read(ctx context.Context) (r models.Reading, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	r, err = s.sampler.Read(ctx)
	if err == nil && r.IsZero() {
		err = errors.New("sampler returned an empty reading")
	}
	return r, err
}

// DrainAverage takes every buffered reading and returns their mean. A source
// that is not Ready always reports no data.
func (s *Source) DrainAverage() (models.Average, bool) {
	if s.State() != Ready {
		return models.Average{}, false
	}
	avg, ok := s.buf.DrainAverage()
	metrics.BufferDepth.WithLabelValues(s.name).Set(0)
	if !ok {
		metrics.DrainsTotal.WithLabelValues(s.name, metrics.ResultEmpty).Inc()
		s.logger.Debug("Drained empty buffer")
		return avg, false
	}
	metrics.DrainsTotal.WithLabelValues(s.name, metrics.ResultData).Inc()
	s.logger.Debug("Drained buffer",
		zap.Stringer("value", avg.Reading),
		zap.Int("samples", avg.Samples))
	return avg, true
}
