package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Guliveer/aerostat/internal/config"
	"github.com/Guliveer/aerostat/internal/logging"
	"github.com/Guliveer/aerostat/internal/platform"
	"github.com/Guliveer/aerostat/internal/scheduler"
	"github.com/Guliveer/aerostat/internal/service"
	"github.com/Guliveer/aerostat/internal/sink"
	"github.com/Guliveer/aerostat/internal/source"
	"github.com/Guliveer/aerostat/internal/station"
	"github.com/Guliveer/aerostat/internal/status"
)

// notifyContext is cancelled on SIGINT or SIGTERM.
func notifyContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// components are the long-lived parts shared by run and once.
type components struct {
	logger   *zap.Logger
	recorder *status.Recorder
	station  *station.Station
	sink     sink.Sink
	runID    string
	closers  []io.Closer
}

func setup(ctx context.Context, cfg *config.Config) (*components, error) {
	recorder := status.NewRecorder(cfg.Status.History, logging.ParseLevel(cfg.Logging.Level))
	logger, logCloser := logging.New(cfg.Logging, recorder)
	runID := uuid.New().String()
	logger = logger.With(zap.String("run_id", runID))

	logger.Info("Starting Aerostat",
		zap.String("version", version),
		zap.String("sink", cfg.Sink.Kind),
		zap.String("sensor_mode", cfg.Sensors.Mode))

	c := &components{logger: logger, recorder: recorder, runID: runID, closers: []io.Closer{logCloser}}

	st, err := station.Build(cfg, platform.New(), logger)
	if err != nil {
		c.close()
		return nil, fmt.Errorf("assembling station: %w", err)
	}
	c.station = st
	c.closers = append([]io.Closer{st}, c.closers...)

	snk, err := sink.New(ctx, cfg.Sink, logger)
	if err != nil {
		c.close()
		return nil, fmt.Errorf("creating sink: %w", err)
	}
	c.sink = snk
	c.closers = append([]io.Closer{snk}, c.closers...)
	return c, nil
}

func (c *components) close() {
	_ = c.logger.Sync()
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			c.logger.Warn("Failed to close", zap.Error(err))
		}
	}
}

// run starts the station and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	c, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.close()
	logger := c.logger

	notifier := service.New(logger)
	reg := c.station.Registry()
	sched := scheduler.New(reg, c.sink, logger,
		scheduler.WithTick(cfg.Schedule.Tick.Duration),
		scheduler.WithMeasurement(cfg.Sink.Measurement),
		scheduler.OnReady(func() {
			ready := 0
			for _, s := range reg.Sources() {
				if s.State() == source.Ready {
					ready++
				}
			}
			notifier.Status(fmt.Sprintf("%d of %d sources ready", ready, len(reg.Sources())))
			notifier.Ready()
		}))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Start(gctx) })
	g.Go(func() error { return notifier.Watchdog(gctx) })
	if cfg.Status.Enabled {
		srv := status.NewServer(cfg.Status, reg, c.recorder, logger,
			status.WithRunID(c.runID),
			status.WithVersion(version))
		g.Go(func() error {
			if err := srv.Start(gctx); err != nil {
				logger.Error("Status server failed", zap.Error(err))
			}
			return nil
		})
	}

	logger.Info("Aerostat running",
		zap.Duration("tick", cfg.Schedule.Tick.Duration),
		zap.Duration("poll_interval", cfg.Schedule.PollInterval.Duration))

	err = g.Wait()
	notifier.Stopping()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Aerostat stopped with error", zap.Error(err))
		return err
	}
	logger.Info("Aerostat stopped")
	return nil
}

// runOnce polls for one window and reports once.
func runOnce(ctx context.Context, cfg *config.Config, window time.Duration) error {
	c, err := setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.close()

	sched := scheduler.New(c.station.Registry(), c.sink, c.logger,
		scheduler.WithMeasurement(cfg.Sink.Measurement))
	if err := sched.RunOnce(ctx, window); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
