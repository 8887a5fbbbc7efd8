package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/Guliveer/aerostat/internal/config"
)

const (
	// defaultRequestTimeout applies when the config leaves the timeout unset.
	defaultRequestTimeout = 5 * time.Second

	// maxErrorBody bounds how much of a failed response is kept in the error.
	maxErrorBody = 256
)

// Influx writes points to an InfluxDB 1.x /write endpoint, one request per
// point.
type Influx struct {
	client   *http.Client
	endpoint string
	cfg      config.InfluxConfig
	logger   *zap.Logger
}

// NewInflux creates an InfluxDB sink. The endpoint is derived from cfg.URL
// and cfg.Database.
func NewInflux(cfg config.InfluxConfig, logger *zap.Logger) (*Influx, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse influx url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("influx url %q must be absolute", cfg.URL)
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + "/write"
	q := base.Query()
	q.Set("db", cfg.Database)
	q.Set("precision", "ns")
	base.RawQuery = q.Encode()

	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Influx{
		client:   &http.Client{Timeout: timeout},
		endpoint: base.String(),
		cfg:      cfg,
		logger:   logger.With(zap.String("sink", "influx")),
	}, nil
}

// Name returns the sink identifier.
func (s *Influx) Name() string { return "influx" }

// Endpoint returns the full write URL.
func (s *Influx) Endpoint() string { return s.endpoint }

// Write sends one point. Any failure is returned as a *TransmitError and
// never retried.
func (s *Influx) Write(ctx context.Context, p Point) error {
	line, err := FormatLine(p)
	if err != nil {
		return &TransmitError{Sink: s.Name(), Err: err}
	}

	body, err := s.encode([]byte(line))
	if err != nil {
		return &TransmitError{Sink: s.Name(), Err: fmt.Errorf("compress: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return &TransmitError{Sink: s.Name(), Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if s.cfg.Gzip {
		req.Header.Set("Content-Encoding", "gzip")
	}
	if s.cfg.Username != "" {
		req.SetBasicAuth(s.cfg.Username, s.cfg.Password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &TransmitError{Sink: s.Name(), Err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	io.Copy(io.Discard, resp.Body)

	s.logger.Debug("Write response",
		zap.Int("status", resp.StatusCode),
		zap.String("body", string(snippet)))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &TransmitError{
		Sink:       s.Name(),
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
	}
}

func (s *Influx) encode(data []byte) ([]byte, error) {
	if !s.cfg.Gzip {
		return data, nil
	}
	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return compressed.Bytes(), nil
}

// Close releases idle connections.
func (s *Influx) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
