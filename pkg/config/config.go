package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix 环境变量前缀，如 LURKKIT_AGENT_INTERVAL -> agent.interval
	EnvPrefix = "LURKKIT"
	// EnvConfigPath 指定配置文件路径的环境变量
	EnvConfigPath = "LURKKIT_CONFIG"
	// FileName 默认配置文件名
	FileName = "lurkkit.yaml"
)

var valid = validator.New()

// ErrConfigNotFound is returned when an explicitly requested file does not exist.
var ErrConfigNotFound = errors.New("config file not found")

// Config 全局配置结构体（聚合所有核心模块）
type Config struct {
	Agent     AgentConfig     `yaml:"agent" mapstructure:"agent"`
	Log       ZapLogConfig    `yaml:"log" mapstructure:"log"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
	Monitors  MonitorsConfig  `yaml:"monitors" mapstructure:"monitors"`
	Alerting  AlertingConfig  `yaml:"alerting" mapstructure:"alerting"`

	// Source is the file the configuration was read from; empty means defaults only.
	Source string `yaml:"-" mapstructure:"-"`
}

// AgentConfig 全局 agent 配置
type AgentConfig struct {
	HostTag       string        `yaml:"host_tag" mapstructure:"host_tag"`
	Interval      time.Duration `yaml:"interval" mapstructure:"interval" validate:"gt=0"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace" mapstructure:"shutdown_grace" validate:"gt=0"`
}

// ZapLogConfig 日志配置
type ZapLogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"required,oneof=json console"`
	// Path 日志目录，为空时只输出到控制台
	Path   string `yaml:"path" mapstructure:"path"`
	MaxAge int    `yaml:"max_age" mapstructure:"max_age" validate:"gte=0"`
}

// ServerConfig HTTP 状态服务配置
type ServerConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	Addr         string        `yaml:"addr" mapstructure:"addr" validate:"required,hostname_port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"gt=0"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" validate:"gt=0"`
}

// TelemetryConfig 指标输出配置
type TelemetryConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	Type          string        `yaml:"type" mapstructure:"type" validate:"oneof=stdout influxdb statsd prometheus"`
	URL           string        `yaml:"url" mapstructure:"url"`
	Token         string        `yaml:"token" mapstructure:"token"`
	StatsdHost    string        `yaml:"statsd_host" mapstructure:"statsd_host"`
	StatsdPort    int           `yaml:"statsd_port" mapstructure:"statsd_port" validate:"gt=0,lte=65535"`
	BatchSize     int           `yaml:"batch_size" mapstructure:"batch_size" validate:"gt=0"`
	FlushInterval time.Duration `yaml:"flush_interval" mapstructure:"flush_interval" validate:"gt=0"`
}

// MonitorsConfig 四类采集器配置
type MonitorsConfig struct {
	System    SystemMonitorConfig  `yaml:"system" mapstructure:"system"`
	Processes ProcessMonitorConfig `yaml:"processes" mapstructure:"processes"`
	HTTP      HTTPMonitorConfig    `yaml:"http" mapstructure:"http"`
	Logs      LogMonitorConfig     `yaml:"logs" mapstructure:"logs"`
}

type SystemMonitorConfig struct {
	Enabled           bool              `yaml:"enabled" mapstructure:"enabled"`
	Interval          time.Duration     `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
	Thresholds        ThresholdConfig   `yaml:"thresholds" mapstructure:"thresholds"`
	CriticalOverrides CriticalOverrides `yaml:"critical_overrides" mapstructure:"critical_overrides"`
}

// ThresholdConfig 告警阈值（百分比），Load1m 为 0 表示关闭
type ThresholdConfig struct {
	CPUPercent    float64 `yaml:"cpu_percent" mapstructure:"cpu_percent" validate:"gte=0,lte=100"`
	MemoryPercent float64 `yaml:"memory_percent" mapstructure:"memory_percent" validate:"gte=0,lte=100"`
	DiskPercent   float64 `yaml:"disk_percent" mapstructure:"disk_percent" validate:"gte=0,lte=100"`
	Load1m        float64 `yaml:"load_1m" mapstructure:"load_1m" validate:"gte=0"`
	SwapPercent   float64 `yaml:"swap_percent" mapstructure:"swap_percent" validate:"gte=0,lte=100"`
}

// CriticalOverrides 超过该值时告警升级为 critical
type CriticalOverrides struct {
	CPUPercent    float64 `yaml:"cpu_percent" mapstructure:"cpu_percent" validate:"gte=0,lte=100"`
	MemoryPercent float64 `yaml:"memory_percent" mapstructure:"memory_percent" validate:"gte=0,lte=100"`
	DiskPercent   float64 `yaml:"disk_percent" mapstructure:"disk_percent" validate:"gte=0,lte=100"`
}

type ProcessMonitorConfig struct {
	Enabled  bool           `yaml:"enabled" mapstructure:"enabled"`
	Interval time.Duration  `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
	Watch    []ProcessWatch `yaml:"watch" mapstructure:"watch" validate:"dive"`
}

// ProcessWatch 单个进程的监控规则，MaxCPU/MaxMemMB 为 0 表示不检查
type ProcessWatch struct {
	Name     string  `yaml:"name" mapstructure:"name" validate:"required"`
	MinCount int     `yaml:"min_count" mapstructure:"min_count" validate:"gte=0"`
	MaxCPU   float64 `yaml:"max_cpu" mapstructure:"max_cpu" validate:"gte=0"`
	MaxMemMB float64 `yaml:"max_mem_mb" mapstructure:"max_mem_mb" validate:"gte=0"`
	Critical bool    `yaml:"critical" mapstructure:"critical"`
}

type HTTPMonitorConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
	Checks   []HTTPCheck   `yaml:"checks" mapstructure:"checks" validate:"dive"`
}

type HTTPCheck struct {
	Name         string            `yaml:"name" mapstructure:"name" validate:"required"`
	URL          string            `yaml:"url" mapstructure:"url" validate:"required,url"`
	Method       string            `yaml:"method" mapstructure:"method"`
	Timeout      time.Duration     `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	ExpectStatus int               `yaml:"expect_status" mapstructure:"expect_status" validate:"gte=0,lt=600"`
	ExpectBody   string            `yaml:"expect_body" mapstructure:"expect_body"`
	Headers      map[string]string `yaml:"headers" mapstructure:"headers"`
	Severity     string            `yaml:"severity" mapstructure:"severity"`
}

type LogMonitorConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
	Files    []LogFile     `yaml:"files" mapstructure:"files" validate:"dive"`
}

type LogFile struct {
	Path      string       `yaml:"path" mapstructure:"path" validate:"required"`
	TailLines int          `yaml:"tail_lines" mapstructure:"tail_lines" validate:"gte=0"`
	Patterns  []LogPattern `yaml:"patterns" mapstructure:"patterns" validate:"dive"`
}

type LogPattern struct {
	Regex    string `yaml:"regex" mapstructure:"regex" validate:"required"`
	Severity string `yaml:"severity" mapstructure:"severity"`
	// Alert 为 nil 时默认 true
	Alert *bool `yaml:"alert" mapstructure:"alert"`
}

// Raises reports whether a match should raise an alert.
func (p LogPattern) Raises() bool {
	return p.Alert == nil || *p.Alert
}

// AlertingConfig 告警生命周期以及各通知后端配置
type AlertingConfig struct {
	Cooldown         time.Duration   `yaml:"cooldown" mapstructure:"cooldown" validate:"gte=0"`
	SendResolve      bool            `yaml:"send_resolve" mapstructure:"send_resolve"`
	PagingSeverities []string        `yaml:"paging_severities" mapstructure:"paging_severities"`
	Slack            SlackConfig     `yaml:"slack" mapstructure:"slack"`
	PagerDuty        PagerDutyConfig `yaml:"pagerduty" mapstructure:"pagerduty"`
	Datadog          DatadogConfig   `yaml:"datadog" mapstructure:"datadog"`
	OpsGenie         OpsGenieConfig  `yaml:"opsgenie" mapstructure:"opsgenie"`
}

type SlackConfig struct {
	Enabled           bool   `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL        string `yaml:"webhook_url" mapstructure:"webhook_url" validate:"required_if=Enabled true,omitempty,url"`
	Channel           string `yaml:"channel" mapstructure:"channel"`
	Username          string `yaml:"username" mapstructure:"username"`
	IconEmoji         string `yaml:"icon_emoji" mapstructure:"icon_emoji"`
	MentionOnCritical string `yaml:"mention_on_critical" mapstructure:"mention_on_critical"`
	MentionOnWarning  string `yaml:"mention_on_warning" mapstructure:"mention_on_warning"`
}

type PagerDutyConfig struct {
	Enabled     bool              `yaml:"enabled" mapstructure:"enabled"`
	RoutingKey  string            `yaml:"routing_key" mapstructure:"routing_key" validate:"required_if=Enabled true"`
	SeverityMap map[string]string `yaml:"severity_map" mapstructure:"severity_map"`
}

type DatadogConfig struct {
	Enabled bool     `yaml:"enabled" mapstructure:"enabled"`
	APIKey  string   `yaml:"api_key" mapstructure:"api_key" validate:"required_if=Enabled true"`
	Site    string   `yaml:"site" mapstructure:"site"`
	Tags    []string `yaml:"tags" mapstructure:"tags"`
}

type OpsGenieConfig struct {
	Enabled     bool              `yaml:"enabled" mapstructure:"enabled"`
	APIKey      string            `yaml:"api_key" mapstructure:"api_key" validate:"required_if=Enabled true"`
	Region      string            `yaml:"region" mapstructure:"region" validate:"omitempty,oneof=us eu"`
	Team        string            `yaml:"team" mapstructure:"team"`
	PriorityMap map[string]string `yaml:"priority_map" mapstructure:"priority_map"`
}

// NewDefaultConfig 创建默认配置（所有字段兜底，避免空指针/非法值）
func NewDefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Interval:      30 * time.Second,
			ShutdownGrace: 5 * time.Second,
		},
		Log: ZapLogConfig{
			Level:  "info",
			Format: "console",
			MaxAge: 7,
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:9464",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Type:          "stdout",
			URL:           "http://localhost:8086/write?db=lurkkit",
			StatsdHost:    "localhost",
			StatsdPort:    8125,
			BatchSize:     20,
			FlushInterval: 10 * time.Second,
		},
		Monitors: MonitorsConfig{
			System: SystemMonitorConfig{
				Enabled:  true,
				Interval: 30 * time.Second,
				Thresholds: ThresholdConfig{
					CPUPercent:    85,
					MemoryPercent: 90,
					DiskPercent:   90,
					SwapPercent:   80,
				},
				CriticalOverrides: CriticalOverrides{
					CPUPercent:    95,
					MemoryPercent: 97,
					DiskPercent:   97,
				},
			},
			Processes: ProcessMonitorConfig{Interval: 30 * time.Second},
			HTTP:      HTTPMonitorConfig{Interval: 60 * time.Second},
			Logs:      LogMonitorConfig{Interval: 15 * time.Second},
		},
		Alerting: AlertingConfig{
			Cooldown:         300 * time.Second,
			SendResolve:      true,
			PagingSeverities: []string{"critical"},
			Slack:            SlackConfig{Username: "LurkKit", IconEmoji: ":cat2:"},
			Datadog:          DatadogConfig{Site: "datadoghq.com"},
			OpsGenie:         OpsGenieConfig{Region: "us"},
		},
	}
}

// SearchPaths 返回配置文件的查找顺序（不含 --config）
func SearchPaths() []string {
	var paths []string
	if env := os.Getenv(EnvConfigPath); env != "" {
		paths = append(paths, env)
	}
	paths = append(paths, FileName)
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "lurkkit", FileName))
	}
	return append(paths, filepath.Join("/etc", "lurkkit", FileName))
}

// ResolvePath picks the config file to read. An explicit path must exist; otherwise
// the first existing entry of SearchPaths wins. An empty result means defaults.
func ResolvePath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, explicit)
		}
		return explicit, nil
	}
	for _, p := range SearchPaths() {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}
	return "", nil
}

// Load reads configuration from path (or the search paths when empty), the
// environment and defaults, then validates it.
func Load(path string) (*Config, error) {
	return load(viper.New(), path)
}

// FlagKeys maps command line flags to configuration keys.
var FlagKeys = map[string]string{
	"log-level":   "log.level",
	"log-format":  "log.format",
	"interval":    "agent.interval",
	"server-addr": "server.addr",
	"host-tag":    "agent.host_tag",
	"server":      "server.enabled",
}

// LoadConfigWithCli 支持 time.Duration，(Flags + YAML + ENV)
func LoadConfigWithCli(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	// 绑定 Cobra Flags → Viper，只有显式传入的 flag 才覆盖文件与环境变量
	for flag, key := range FlagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("bind flag --%s: %w", flag, err)
		}
	}

	configFile, _ := cmd.Flags().GetString("config")
	return load(v, configFile)
}

func load(v *viper.Viper, explicit string) (*Config, error) {
	cfg := NewDefaultConfig()

	// 1. 默认值注册到 viper，使环境变量对未出现在文件中的键也生效
	if err := setDefaults(v, cfg); err != nil {
		return nil, err
	}

	// 2. 解析配置文件
	path, err := ResolvePath(explicit)
	if err != nil {
		return nil, err
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	// 3. 绑定环境变量 LURKKIT_TELEMETRY_URL -> telemetry.url
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. 解码到结构体（支持 "30s" 与纯数字秒）
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ZeroFields:       true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			SecondsDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Source = path
	cfg.applyDefaults()

	// 5. 校验配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// setDefaults flattens the default config into viper defaults.
func setDefaults(v *viper.Viper, cfg *Config) error {
	var tree map[string]any
	if err := mapstructure.Decode(cfg, &tree); err != nil {
		return fmt.Errorf("flatten defaults: %w", err)
	}
	walkDefaults(v, "", tree)
	return nil
}

func walkDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			walkDefaults(v, key, sub)
			continue
		}
		rv := reflect.ValueOf(val)
		if !rv.IsValid() {
			continue
		}
		switch rv.Kind() {
		case reflect.Map, reflect.Slice, reflect.Pointer:
			if rv.IsNil() {
				continue
			}
		}
		v.SetDefault(key, val)
	}
}

var durationType = reflect.TypeOf(time.Duration(0))

// SecondsDurationHookFunc decodes durations from Go syntax ("30s") or from bare
// numbers, which count seconds.
func SecondsDurationHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType || from == durationType {
			return data, nil
		}
		switch from.Kind() {
		case reflect.String:
			s := strings.TrimSpace(data.(string))
			if s == "" {
				return time.Duration(0), nil
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return secondsToDuration(f), nil
			}
			return time.ParseDuration(s)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return time.Duration(reflect.ValueOf(data).Uint()) * time.Second, nil
		case reflect.Float32, reflect.Float64:
			return secondsToDuration(reflect.ValueOf(data).Float()), nil
		}
		return data, nil
	}
}

func secondsToDuration(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

// applyDefaults fills per-item defaults of list entries and derived values.
func (c *Config) applyDefaults() {
	if c.Agent.HostTag == "" {
		if h, err := os.Hostname(); err == nil {
			c.Agent.HostTag = h
		} else {
			c.Agent.HostTag = "unknown"
		}
	}
	for i := range c.Monitors.Processes.Watch {
		w := &c.Monitors.Processes.Watch[i]
		if w.MinCount == 0 {
			w.MinCount = 1
		}
	}
	for i := range c.Monitors.HTTP.Checks {
		ch := &c.Monitors.HTTP.Checks[i]
		if ch.Method == "" {
			ch.Method = "GET"
		}
		ch.Method = strings.ToUpper(ch.Method)
		if ch.Timeout == 0 {
			ch.Timeout = 5 * time.Second
		}
		if ch.ExpectStatus == 0 {
			ch.ExpectStatus = 200
		}
		if ch.Severity == "" {
			ch.Severity = "critical"
		}
	}
	for i := range c.Monitors.Logs.Files {
		f := &c.Monitors.Logs.Files[i]
		if f.TailLines == 0 {
			f.TailLines = 200
		}
		for j := range f.Patterns {
			if f.Patterns[j].Severity == "" {
				f.Patterns[j].Severity = "warning"
			}
		}
	}
	if c.Alerting.Datadog.Site == "" {
		c.Alerting.Datadog.Site = "datadoghq.com"
	}
}

// IntervalFor returns the monitor interval, falling back to agent.interval.
func (c *Config) IntervalFor(monitor time.Duration) time.Duration {
	if monitor > 0 {
		return monitor
	}
	return c.Agent.Interval
}

// Validate 配置校验
func (c *Config) Validate() error {
	if err := valid.Struct(c); err != nil {
		return err
	}
	if err := c.Agent.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Telemetry.Validate(); err != nil {
		return err
	}
	if c.Telemetry.Enabled && c.Telemetry.Type == "prometheus" && !c.Server.Enabled {
		return fmt.Errorf("telemetry type prometheus requires server.enabled")
	}
	if err := c.Monitors.Validate(); err != nil {
		return err
	}
	return c.Alerting.Validate()
}
