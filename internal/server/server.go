// Package server 提供 HTTP 状态服务：Prometheus 指标暴露、健康检查以及
// 当前告警状态查询，用于支撑 agent 自身的可观测性。
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lurkkit/agent/pkg/config"
)

// Status is the /status response body.
type Status struct {
	Host           string            `json:"host"`
	StartedAt      time.Time         `json:"started_at"`
	Uptime         string            `json:"uptime"`
	Collectors     []CollectorStatus `json:"collectors"`
	Firing         []string          `json:"firing"`
	FiringCount    int               `json:"firing_count"`
	PendingMetrics int               `json:"pending_metrics"`
	Alerters       []string          `json:"alerters"`
}

type CollectorStatus struct {
	Name     string `json:"name"`
	Interval string `json:"interval"`
}

// StatusFunc returns a fresh snapshot for every /status request.
type StatusFunc func() Status

// HTTPServer HTTP 服务实例，封装监听地址、底层 http.Server 和指标注册器
type HTTPServer struct {
	addr     string
	server   *http.Server
	listener net.Listener
	log      *zap.Logger
}

// statusWriter 包装 http.ResponseWriter，用于捕获响应状态码
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// NewHTTPServer 创建 HTTP 服务实例
//
//	/metrics  registry 中的指标
//	/health   固定返回 200 OK
//	/status   status() 的 JSON 快照
func NewHTTPServer(cfg config.ServerConfig, registry *prometheus.Registry, status StatusFunc, log *zap.Logger) *HTTPServer {
	if log == nil {
		log = zap.NewNop()
	}
	s := &HTTPServer{addr: cfg.Addr, log: log}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorLog:      zap.NewStdLog(log),
		ErrorHandling: promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status()); err != nil {
			log.Warn("encode status failed", zap.Error(err))
		}
	})

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.logRequests(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *HTTPServer) Handler() http.Handler { return s.server.Handler }

// logRequests 记录请求方法、路径、状态码和耗时
func (s *HTTPServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// Start binds the listener synchronously so address errors surface to the
// caller, then serves in the background.
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.log.Info("starting HTTP server",
		zap.String("listen_addr", ln.Addr().String()),
		zap.Duration("read_timeout", s.server.ReadTimeout),
		zap.Duration("write_timeout", s.server.WriteTimeout),
	)

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server stopped unexpectedly", zap.Error(err))
		}
	}()
	return nil
}

// Addr is the bound address once Start has succeeded.
func (s *HTTPServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown 优雅关闭：停止接收新请求并等待现有请求处理完成
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		s.log.Error("HTTP server shutdown failed", zap.Error(err))
		return err
	}
	s.log.Info("HTTP server shutdown successfully", zap.String("listen_addr", s.Addr()))
	return nil
}
