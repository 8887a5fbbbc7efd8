package sink

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Unix(1700000000, 123)

func TestFormatLine(t *testing.T) {
	tests := []struct {
		name    string
		point   Point
		want    string
		wantErr bool
	}{
		{
			name:  "plain",
			point: Point{Measurement: "value", Tag: "AHTTemperatureSensor", Value: 21.44, Time: testTime},
			want:  "value,sensor=AHTTemperatureSensor value=21.4 1700000000000000123",
		},
		{
			name:  "rounds to one decimal",
			point: Point{Measurement: "value", Tag: "MPLPressureSensor", Value: 1013.25, Time: testTime},
			want:  "value,sensor=MPLPressureSensor value=1013.2 1700000000000000123",
		},
		{
			name:  "escapes",
			point: Point{Measurement: "air quality", Tag: "voc,index=1 a", Value: 100, Time: testTime},
			want:  `air\ quality,sensor=voc\,index\=1\ a value=100.0 1700000000000000123`,
		},
		{
			name:  "negative",
			point: Point{Measurement: "value", Tag: "t", Value: -4.06, Time: testTime},
			want:  "value,sensor=t value=-4.1 1700000000000000123",
		},
		{name: "nan", point: Point{Measurement: "value", Tag: "t", Value: math.NaN()}, wantErr: true},
		{name: "inf", point: Point{Measurement: "value", Tag: "t", Value: math.Inf(1)}, wantErr: true},
		{name: "no tag", point: Point{Measurement: "value", Value: 1}, wantErr: true},
		{name: "no measurement", point: Point{Tag: "t", Value: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatLine(tt.point)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type recordingSink struct {
	name   string
	err    error
	points []Point
	closed bool
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Write(_ context.Context, p Point) error {
	r.points = append(r.points, p)
	return r.err
}

func (r *recordingSink) Close() error {
	r.closed = true
	return r.err
}

func TestMultiWritesEverySink(t *testing.T) {
	failing := &recordingSink{name: "a", err: &TransmitError{Sink: "a", Err: errors.New("down")}}
	ok := &recordingSink{name: "b"}
	m := Multi{failing, ok}

	err := m.Write(context.Background(), Point{Measurement: "value", Tag: "x", Value: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransmit)
	assert.Len(t, failing.points, 1)
	assert.Len(t, ok.points, 1, "a failing sink must not starve the next one")
	assert.Equal(t, "a+b", m.Name())

	assert.Error(t, m.Close())
	assert.True(t, failing.closed)
	assert.True(t, ok.closed)
}

func TestTransmitErrorMessage(t *testing.T) {
	err := &TransmitError{Sink: "influx", StatusCode: 500, Err: errors.New("boom")}
	assert.Equal(t, "influx: transmit failed (status 500): boom", err.Error())
	assert.ErrorIs(t, err, ErrTransmit)

	err = &TransmitError{Sink: "mqtt", Err: errors.New("offline")}
	assert.Equal(t, "mqtt: transmit failed: offline", err.Error())
}
