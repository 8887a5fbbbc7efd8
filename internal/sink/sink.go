// Package sink writes averaged readings to time-series backends. A failed
// write is reported to the caller and discarded: there is no retry queue,
// the next reporting tick supersedes the lost point.
package sink

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TagKey is the tag carrying the source name in every point.
const TagKey = "sensor"

// ErrTransmit marks a failed write to a sink.
var ErrTransmit = errors.New("transmit failed")

// Point is one averaged reading ready to be written.
type Point struct {
	Measurement string
	Tag         string
	Value       float64
	Time        time.Time
}

// Sink accepts points. Implementations must be safe for use by the single
// reporting goroutine; they are not required to be concurrency-safe.
type Sink interface {
	Name() string
	Write(ctx context.Context, p Point) error
	Close() error
}

// TransmitError reports a point that did not reach the sink.
type TransmitError struct {
	Sink       string
	StatusCode int
	Err        error
}

func (e *TransmitError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %v (status %d): %v", e.Sink, ErrTransmit, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Sink, ErrTransmit, e.Err)
}

func (e *TransmitError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTransmit) match.
func (e *TransmitError) Is(target error) bool { return target == ErrTransmit }

// FormatLine renders p in InfluxDB line protocol:
//
//	value,sensor=AHTTemperatureSensor value=21.4 1700000000000000000
func FormatLine(p Point) (string, error) {
	if p.Measurement == "" {
		return "", errors.New("empty measurement")
	}
	if p.Tag == "" {
		return "", errors.New("empty tag")
	}
	if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
		return "", fmt.Errorf("value %v cannot be encoded", p.Value)
	}

	var b strings.Builder
	b.WriteString(measurementEscaper.Replace(p.Measurement))
	b.WriteByte(',')
	b.WriteString(TagKey)
	b.WriteByte('=')
	b.WriteString(tagEscaper.Replace(p.Tag))
	b.WriteString(" value=")
	b.WriteString(strconv.FormatFloat(p.Value, 'f', 1, 64))
	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(p.Time.UnixNano(), 10))
	return b.String(), nil
}

var (
	measurementEscaper = strings.NewReplacer(",", `\,`, " ", `\ `)
	tagEscaper         = strings.NewReplacer(",", `\,`, "=", `\=`, " ", `\ `)
)

// Multi writes every point to all of its sinks.
type Multi []Sink

// Name returns the member names joined with "+".
func (m Multi) Name() string {
	names := make([]string, len(m))
	for i, s := range m {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

// Write attempts every sink, even after one fails, and joins the errors.
func (m Multi) Write(ctx context.Context, p Point) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins the errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
