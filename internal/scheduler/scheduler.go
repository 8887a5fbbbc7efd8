// Package scheduler implements the reporting orchestrator. It starts one
// polling loop per ready source and, on a fixed tick of its own, drains
// every source and forwards each average to the sink. A failure while
// draining or forwarding one source never affects the others.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Guliveer/aerostat/internal/metrics"
	"github.com/Guliveer/aerostat/internal/sink"
	"github.com/Guliveer/aerostat/internal/source"
)

// DefaultTick is the reporting period.
const DefaultTick = time.Second

// Scheduler owns the set of sources and the reporting loop.
type Scheduler struct {
	registry    *source.Registry
	sink        sink.Sink
	logger      *zap.Logger
	clock       clock.Clock
	tick        time.Duration
	measurement string
	onReady     func()
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock driving the reporting tick.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithTick sets the reporting period.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithMeasurement sets the measurement name written with every point.
func WithMeasurement(m string) Option {
	return func(s *Scheduler) { s.measurement = m }
}

// OnReady registers a callback invoked once every source has been
// initialized and the loops are about to start.
func OnReady(fn func()) Option {
	return func(s *Scheduler) { s.onReady = fn }
}

// New creates a Scheduler over the registry's sources.
func New(registry *source.Registry, snk sink.Sink, logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		registry:    registry,
		sink:        snk,
		logger:      logger,
		clock:       clock.New(),
		tick:        DefaultTick,
		measurement: "value",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes every source, starts the polling loops and the reporting
// loop, and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	g, gctx := s.startPolling(ctx)
	if s.onReady != nil {
		s.onReady()
	}
	g.Go(func() error { return s.report(gctx) })
	return g.Wait()
}

// RunOnce initializes every source, polls for one window and reports once.
func (s *Scheduler) RunOnce(ctx context.Context, window time.Duration) error {
	pollCtx, cancel := context.WithCancel(ctx)
	g, _ := s.startPolling(pollCtx)

	select {
	case <-ctx.Done():
	case <-s.clock.After(window):
	}
	cancel()
	if err := g.Wait(); err != nil {
		return err
	}
	s.Tick(ctx)
	return ctx.Err()
}

func (s *Scheduler) startPolling(ctx context.Context) (*errgroup.Group, context.Context) {
	sources := s.registry.Sources()
	ready := s.registry.InitializeAll(ctx)
	s.logger.Info("Sources initialized",
		zap.Int("ready", ready),
		zap.Int("total", len(sources)))

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		if src.State() != source.Ready {
			continue
		}
		g.Go(func() error {
			s.poll(gctx, src)
			return nil
		})
	}
	return g, gctx
}

// poll runs one source's loop, containing any panic that escapes it.
func (s *Scheduler) poll(ctx context.Context, src *source.Source) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("Polling loop crashed",
				zap.String("source", src.Name()),
				zap.String("panic", fmt.Sprint(p)))
		}
	}()
	if err := src.Run(ctx); err != nil {
		s.logger.Warn("Polling loop exited",
			zap.String("source", src.Name()),
			zap.Error(err))
	}
}

func (s *Scheduler) report(ctx context.Context) error {
	ticker := s.clock.Ticker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick drains every source once and forwards each scalar average.
func (s *Scheduler) Tick(ctx context.Context) {
	metrics.TicksTotal.Inc()
	s.logger.Debug("Collecting data")
	for _, src := range s.registry.Sources() {
		if err := s.forward(ctx, src); err != nil {
			s.logger.Error("Error processing or posting data",
				zap.String("source", src.Name()),
				zap.Error(err))
		}
	}
}

func (s *Scheduler) forward(ctx context.Context, src source.Drainer) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	avg, ok := src.DrainAverage()
	if !ok {
		return nil
	}
	value, ok := avg.Scalar()
	if !ok {
		metrics.DroppedAveragesTotal.WithLabelValues(src.Name()).Inc()
		s.logger.Warn("Not forwarding non-scalar average",
			zap.String("source", src.Name()),
			zap.Stringer("value", avg.Reading))
		return nil
	}

	p := sink.Point{
		Measurement: s.measurement,
		Tag:         src.Name(),
		Value:       value,
		Time:        s.clock.Now(),
	}
	if err := s.sink.Write(ctx, p); err != nil {
		metrics.SinkWritesTotal.WithLabelValues(s.sink.Name(), metrics.ResultError).Inc()
		return err
	}
	metrics.SinkWritesTotal.WithLabelValues(s.sink.Name(), metrics.ResultOK).Inc()
	s.logger.Info("Posted average",
		zap.String("measurement", p.Measurement),
		zap.String("source", p.Tag),
		zap.Float64("value", value),
		zap.Int("samples", avg.Samples))
	return nil
}
