package sink

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Guliveer/aerostat/internal/config"
)

// New builds the sink selected by cfg.Kind. An MQTT broker that is not
// reachable yet is logged, not fatal: the client keeps reconnecting and
// writes fail until it succeeds.
func New(ctx context.Context, cfg config.SinkConfig, logger *zap.Logger) (Sink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var sinks Multi
	if cfg.Kind == config.SinkInflux || cfg.Kind == config.SinkBoth {
		influx, err := NewInflux(cfg.Influx, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Writing to InfluxDB", zap.String("endpoint", influx.Endpoint()))
		sinks = append(sinks, influx)
	}
	if cfg.Kind == config.SinkMQTT || cfg.Kind == config.SinkBoth {
		m := NewMQTT(cfg.MQTT, logger)
		if err := m.Connect(ctx); err != nil {
			logger.Warn("MQTT broker not reachable yet, continuing",
				zap.String("broker", cfg.MQTT.Broker),
				zap.Error(err))
		}
		sinks = append(sinks, m)
	}

	switch len(sinks) {
	case 0:
		return nil, fmt.Errorf("unknown sink kind %q", cfg.Kind)
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}
