package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type doneToken struct {
	err  error
	done chan struct{}
}

func newDoneToken(err error) *doneToken {
	t := &doneToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return t.err }

// pendingToken never completes.
type pendingToken struct{ doneToken }

func (t *pendingToken) Done() <-chan struct{} { return make(chan struct{}) }

type published struct {
	topic   string
	payload string
}

// fakeClient implements the subset of mqtt.Client the sink uses.
type fakeClient struct {
	mqtt.Client
	open         bool
	publishErr   error
	hang         bool
	published    []published
	disconnected bool
}

func (c *fakeClient) IsConnectionOpen() bool { return c.open }

func (c *fakeClient) Connect() mqtt.Token { return newDoneToken(nil) }

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	c.published = append(c.published, published{topic: topic, payload: payload.(string)})
	if c.hang {
		return &pendingToken{}
	}
	return newDoneToken(c.publishErr)
}

func TestMQTTWrite(t *testing.T) {
	client := &fakeClient{open: true}
	m := newMQTT(client, "aerostat/", time.Second, zap.NewNop())
	require.NoError(t, m.Connect(context.Background()))

	err := m.Write(context.Background(), Point{Measurement: "value", Tag: "LTR390Sensor", Value: 3.25, Time: testTime})
	require.NoError(t, err)
	require.Len(t, client.published, 1)
	assert.Equal(t, "aerostat/LTR390Sensor", client.published[0].topic)
	assert.Equal(t, "value,sensor=LTR390Sensor value=3.2 1700000000000000123", client.published[0].payload)

	require.NoError(t, m.Close())
	assert.True(t, client.disconnected)
}

func TestMQTTWriteNotConnected(t *testing.T) {
	client := &fakeClient{open: false}
	m := newMQTT(client, "aerostat", time.Second, zap.NewNop())

	err := m.Write(context.Background(), Point{Measurement: "value", Tag: "x", Value: 1, Time: testTime})
	assert.ErrorIs(t, err, ErrTransmit)
	assert.Empty(t, client.published)
}

func TestMQTTWritePublishError(t *testing.T) {
	client := &fakeClient{open: true, publishErr: errors.New("not authorized")}
	m := newMQTT(client, "", time.Second, zap.NewNop())

	err := m.Write(context.Background(), Point{Measurement: "value", Tag: "x", Value: 1, Time: testTime})
	assert.ErrorIs(t, err, ErrTransmit)
	assert.Equal(t, "x", client.published[0].topic)
}

func TestMQTTWriteTimesOut(t *testing.T) {
	client := &fakeClient{open: true, hang: true}
	m := newMQTT(client, "aerostat", 20*time.Millisecond, zap.NewNop())

	err := m.Write(context.Background(), Point{Measurement: "value", Tag: "x", Value: 1, Time: testTime})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}
