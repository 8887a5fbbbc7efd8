// Package buffer provides the in-memory sample buffer owned by each source.
// Readings accumulate between reporting cycles and are drained atomically
// into a single component-wise average.
package buffer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/Guliveer/aerostat/internal/models"
)

// ErrShapeMismatch is returned by Append when a reading's arity differs from
// the buffer's. A source's shape never changes at runtime, so this always
// indicates a bug in the sampler.
var ErrShapeMismatch = errors.New("reading shape mismatch")

// defaultCapacity is the initial backing capacity; a 1 s poll against a 1 s
// tick rarely holds more than a couple of readings.
const defaultCapacity = 4

// Buffer accumulates readings of a single shape. Append and DrainAverage are
// safe for concurrent use; every reading is counted by exactly one drain.
type Buffer struct {
	shape  models.Shape
	logger *zap.Logger
	clock  clock.Clock

	mu      sync.Mutex
	samples []models.Reading
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithClock sets the clock used to stamp averages.
func WithClock(c clock.Clock) Option {
	return func(b *Buffer) { b.clock = c }
}

// New creates an empty buffer accepting readings of the given shape.
// It panics on an invalid shape. Pass a nil logger for no logging.
func New(shape models.Shape, logger *zap.Logger, opts ...Option) *Buffer {
	if !shape.Valid() {
		panic(fmt.Sprintf("buffer: invalid shape %d", shape))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Buffer{
		shape:   shape,
		logger:  logger,
		clock:   clock.New(),
		samples: make([]models.Reading, 0, defaultCapacity),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Shape returns the arity every appended reading must have.
func (b *Buffer) Shape() models.Shape { return b.shape }

// Append adds a reading. A reading of the wrong shape is logged and dropped.
func (b *Buffer) Append(r models.Reading) error {
	if r.Shape() != b.shape {
		err := fmt.Errorf("%w: got %s, want %s", ErrShapeMismatch, r.Shape(), b.shape)
		b.logger.Error("Dropping reading", zap.Stringer("reading", r), zap.Error(err))
		return err
	}

	b.mu.Lock()
	b.samples = append(b.samples, r)
	b.mu.Unlock()
	return nil
}

// DrainAverage atomically takes every buffered reading, clears the buffer and
// returns the component-wise mean. It returns false when the buffer was empty.
func (b *Buffer) DrainAverage() (models.Average, bool) {
	samples := b.take()
	if len(samples) == 0 {
		return models.Average{}, false
	}
	return models.Average{
		Reading:   mean(samples, b.shape),
		Samples:   len(samples),
		DrainedAt: b.clock.Now(),
	}, true
}

// take swaps out the buffered readings. The returned slice is no longer
// reachable by writers, so the mean is computed without holding the lock.
func (b *Buffer) take() []models.Reading {
	b.mu.Lock()
	defer b.mu.Unlock()
	samples := b.samples
	if len(samples) == 0 {
		return nil
	}
	b.samples = make([]models.Reading, 0, max(cap(samples), defaultCapacity))
	return samples
}

// Len returns the number of readings waiting for the next drain.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// mean averages each component independently over all samples.
func mean(samples []models.Reading, shape models.Shape) models.Reading {
	column := make([]float64, len(samples))
	out := make([]float64, shape)
	for i := range out {
		for j, s := range samples {
			column[j] = s.At(i)
		}
		out[i] = stat.Mean(column, nil)
	}
	return models.Tuple(out...)
}
