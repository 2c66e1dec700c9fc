package telemetry

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"go.uber.org/multierr"

	"github.com/lurkkit/agent/pkg/model"
)

// Statsd sends one UDP datagram per gauge line.
type Statsd struct {
	conn net.Conn
}

func NewStatsd(host string, port int) (*Statsd, error) {
	conn, err := net.Dial("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("dial statsd: %w", err)
	}
	return &Statsd{conn: conn}, nil
}

func (s *Statsd) Send(_ context.Context, metrics []model.Metric) error {
	var errs error
	for _, m := range metrics {
		for _, line := range m.Statsd() {
			if _, err := s.conn.Write([]byte(line)); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}
	return errs
}

func (s *Statsd) Close() error {
	return s.conn.Close()
}
