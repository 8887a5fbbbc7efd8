package source

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Guliveer/aerostat/internal/models"
)

// DefaultBackoffInterval is how long a derived sampler waits between reads
// while its upstream sources have nothing to drain.
const DefaultBackoffInterval = 60 * time.Second

// Combiner computes a derived value from two upstream averages, e.g. a VOC
// index from temperature and relative humidity.
type Combiner interface {
	Initialize(ctx context.Context) error
	Combine(ctx context.Context, a, b float64) (float64, error)
}

// Derived is a Sampler whose input is the drained average of two other
// sources instead of hardware.
//
// Each read drains both upstream buffers, so the reporter's own drain of
// those sources only covers what accumulated since the derived sampler last
// ran. Upstream averages forwarded to the sink may therefore span a shorter
// window than the one the derived value was computed from.
type Derived struct {
	a, b     Drainer
	combiner Combiner
	fast     time.Duration
	backoff  time.Duration
	flowing  atomic.Bool
	misses   atomic.Int64
}

// DerivedOption configures a Derived sampler.
type DerivedOption func(*Derived)

// WithIntervals sets the polling interval used while upstream data flows and
// the one used while waiting for it.
func WithIntervals(fast, backoff time.Duration) DerivedOption {
	return func(d *Derived) {
		if fast > 0 {
			d.fast = fast
		}
		if backoff > 0 {
			d.backoff = backoff
		}
	}
}

// NewDerived creates a sampler combining the averages drained from a and b.
// It holds a and b only to drain them.
func NewDerived(a, b Drainer, combiner Combiner, opts ...DerivedOption) *Derived {
	d := &Derived{
		a:        a,
		b:        b,
		combiner: combiner,
		fast:     DefaultInterval,
		backoff:  DefaultBackoffInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Initialize acquires the combiner's resource.
func (d *Derived) Initialize(ctx context.Context) error {
	return d.combiner.Initialize(ctx)
}

// Interval is the backoff interval until upstream data first flows, then
// the fast interval. It returns to the backoff interval only after a full
// backoff period's worth of consecutive empty reads.
func (d *Derived) Interval() time.Duration {
	if d.flowing.Load() {
		return d.fast
	}
	return d.backoff
}

// Read drains both upstream sources and combines their averages. Both are
// drained on every call, even when the first one is empty.
func (d *Derived) Read(ctx context.Context) (models.Reading, error) {
	avgA, okA := d.a.DrainAverage()
	avgB, okB := d.b.DrainAverage()
	if !okA || !okB {
		if d.misses.Add(1) >= d.missLimit() {
			d.flowing.Store(false)
		}
		return models.Reading{}, fmt.Errorf("%w from %s or %s", ErrNoUpstreamData, d.a.Name(), d.b.Name())
	}
	d.misses.Store(0)
	d.flowing.Store(true)

	a, ok := avgA.Scalar()
	if !ok {
		return models.Reading{}, fmt.Errorf("upstream %s produced a %s average", d.a.Name(), avgA.Shape())
	}
	b, ok := avgB.Scalar()
	if !ok {
		return models.Reading{}, fmt.Errorf("upstream %s produced a %s average", d.b.Name(), avgB.Shape())
	}

	v, err := d.combiner.Combine(ctx, a, b)
	if err != nil {
		return models.Reading{}, err
	}
	return models.Scalar(v), nil
}

// missLimit is how many consecutive empty reads at the fast interval add up
// to one backoff interval.
func (d *Derived) missLimit() int64 {
	if d.fast <= 0 || d.backoff <= d.fast {
		return 1
	}
	return int64(d.backoff / d.fast)
}
