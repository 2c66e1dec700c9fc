package telemetry

import (
	"bufio"
	"context"
	"io"
	"sync"

	"github.com/lurkkit/agent/pkg/model"
)

// Stdout prints "[METRIC] <line protocol>" per metric.
type Stdout struct {
	mu sync.Mutex
	w  io.Writer
}

func NewStdout(w io.Writer) *Stdout {
	return &Stdout{w: w}
}

func (s *Stdout) Send(_ context.Context, metrics []model.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bw := bufio.NewWriter(s.w)
	for _, m := range metrics {
		line := m.LineProtocol()
		if line == "" {
			continue
		}
		_, _ = bw.WriteString("[METRIC] ")
		_, _ = bw.WriteString(line)
		_ = bw.WriteByte('\n')
	}
	return bw.Flush()
}
