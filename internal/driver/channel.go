package driver

import (
	"context"
	"sync"
	"time"

	"github.com/Guliveer/aerostat/internal/models"
	"github.com/Guliveer/aerostat/internal/source"
)

// channel exposes one quantity of a device as a source.Sampler. Devices
// measuring several quantities hand out one channel per quantity and share
// their initialization between them.
type channel struct {
	init     func(ctx context.Context) error
	read     func(ctx context.Context) (float64, error)
	interval time.Duration
}

var _ source.Sampler = channel{}

func (c channel) Initialize(ctx context.Context) error { return c.init(ctx) }

func (c channel) Interval() time.Duration {
	if c.interval <= 0 {
		return source.DefaultInterval
	}
	return c.interval
}

func (c channel) Read(ctx context.Context) (models.Reading, error) {
	v, err := c.read(ctx)
	if err != nil {
		return models.Reading{}, err
	}
	return models.Scalar(v), nil
}

// initOnce memoizes a device initialization shared by several channels.
type initOnce struct {
	once sync.Once
	err  error
}

func (o *initOnce) do(fn func() error) error {
	o.once.Do(func() { o.err = fn() })
	return o.err
}
