package registers

import (
	"context"
	"time"

	"github.com/lurkkit/agent/pkg/collector"
)

// Agent 顶层采集器接口（封装所有采集器的生命周期管理）
// 后续扩展采集器仅需实现 Collector 接口，通过 Agent 注册即可
type Agent interface {
	Register(c Collector, interval time.Duration) // 注册采集器，interval 为 0 时使用全局间隔
	Start(ctx context.Context) error              // 每个采集器一个 goroutine
	Stop(ctx context.Context) error               // 优雅停止并刷新指标缓冲
}

// Collector 采集器核心接口
type Collector = collector.Collector
