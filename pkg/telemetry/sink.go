// Package telemetry ships collected metrics to a backend in batches.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/lurkkit/agent/pkg/config"
	"github.com/lurkkit/agent/pkg/model"
)

// Sink delivers one batch of metrics.
type Sink interface {
	Send(ctx context.Context, metrics []model.Metric) error
}

// MakeSink builds the configured sink. A disabled telemetry section yields a
// nil sink, which turns the buffer into a no-op.
func MakeSink(cfg config.TelemetryConfig, hc *http.Client, out io.Writer) (Sink, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Type {
	case "", "stdout":
		if out == nil {
			out = os.Stdout
		}
		return NewStdout(out), nil
	case "influxdb":
		return NewInfluxDB(cfg.URL, cfg.Token, hc), nil
	case "statsd":
		return NewStatsd(cfg.StatsdHost, cfg.StatsdPort)
	case "prometheus":
		return NewPrometheus(), nil
	}
	return nil, fmt.Errorf("unknown telemetry type %q", cfg.Type)
}

// Close releases sink resources when the sink holds any.
func Close(s Sink) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
