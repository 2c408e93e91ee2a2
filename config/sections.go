package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ============================================================================
//                              准入
// ============================================================================

// AdmissionConfig 准入流水线配置
type AdmissionConfig struct {
	// ReadyTimeout 预登录等待进程启动的上限，超时后继续处理
	ReadyTimeout Duration `json:"ready_timeout" env:"READY_TIMEOUT"`

	// DebugLogins 输出每次预登录/登录的处理日志
	DebugLogins bool `json:"debug_logins" env:"DEBUG_LOGINS"`
}

// DefaultAdmissionConfig 返回默认准入配置
func DefaultAdmissionConfig() AdmissionConfig {
	return AdmissionConfig{
		ReadyTimeout: Duration(60 * time.Second),
	}
}

// Validate 验证准入配置
func (c *AdmissionConfig) Validate() error {
	if c.ReadyTimeout <= 0 {
		return fmt.Errorf("admission: ready_timeout must be positive")
	}
	return nil
}

// ============================================================================
//                              去抖
// ============================================================================

// DebounceConfig 去抖配置
type DebounceConfig struct {
	// Window 最小静默间隔
	Window Duration `json:"window" env:"WINDOW"`

	// IdleTimeout 去抖条目空闲驱逐时间
	IdleTimeout Duration `json:"idle_timeout" env:"IDLE_TIMEOUT"`

	// ExtendOnRequest 尾沿模式：每次请求把截止时间推到 now+Window
	ExtendOnRequest bool `json:"extend_on_request" env:"EXTEND_ON_REQUEST"`
}

// DefaultDebounceConfig 返回默认去抖配置
func DefaultDebounceConfig() DebounceConfig {
	return DebounceConfig{
		Window:      Duration(500 * time.Millisecond),
		IdleTimeout: Duration(10 * time.Second),
	}
}

// Validate 验证去抖配置
func (c *DebounceConfig) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("debounce: window must be positive")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("debounce: idle_timeout must be positive")
	}
	if c.IdleTimeout <= c.Window {
		return fmt.Errorf("debounce: idle_timeout (%s) must be longer than window (%s)", c.IdleTimeout, c.Window)
	}
	return nil
}

// ============================================================================
//                              调度器
// ============================================================================

// SchedulerConfig 指定执行上下文配置
type SchedulerConfig struct {
	// TickInterval tick 间隔，RunAfterTick 的任务在下一个 tick 执行
	TickInterval Duration `json:"tick_interval" env:"TICK_INTERVAL"`
}

// DefaultSchedulerConfig 返回默认调度器配置
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TickInterval: Duration(50 * time.Millisecond),
	}
}

// Validate 验证调度器配置
func (c *SchedulerConfig) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("scheduler: tick_interval must be positive")
	}
	return nil
}

// ============================================================================
//                              存储
// ============================================================================

// StorageConfig 用户记录存储配置
//
// 数据目录结构：
//
//	${DataDir}/
//	└── permsync.db/        # BadgerDB 主数据库
type StorageConfig struct {
	// DataDir 数据目录路径
	DataDir string `json:"data_dir" env:"DATA_DIR"`

	// InMemory 使用内存数据库（测试、临时部署）
	InMemory bool `json:"in_memory" env:"IN_MEMORY"`

	// CacheSize 读缓存条目数
	CacheSize int `json:"cache_size" env:"CACHE_SIZE"`

	// DefaultGroup 新用户的默认权限组
	DefaultGroup string `json:"default_group" env:"DEFAULT_GROUP"`
}

// DefaultStorageConfig 返回默认存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		DataDir:      "./data",
		CacheSize:    1024,
		DefaultGroup: "default",
	}
}

// Validate 验证存储配置
func (c *StorageConfig) Validate() error {
	if !c.InMemory && c.DataDir == "" {
		return fmt.Errorf("storage: data_dir cannot be empty")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("storage: cache_size must be positive")
	}
	if c.DefaultGroup == "" {
		return fmt.Errorf("storage: default_group cannot be empty")
	}
	return nil
}

// DBPath 返回 BadgerDB 数据库路径
func (c *StorageConfig) DBPath() string {
	return filepath.Join(c.DataDir, "permsync.db")
}

// ============================================================================
//                              会话状态
// ============================================================================

// StateConfig 会话状态配置
type StateConfig struct {
	// UnloadDelay 断开后延迟卸载状态的时间，期间重连则保留
	UnloadDelay Duration `json:"unload_delay" env:"UNLOAD_DELAY"`
}

// DefaultStateConfig 返回默认会话状态配置
func DefaultStateConfig() StateConfig {
	return StateConfig{
		UnloadDelay: Duration(5 * time.Second),
	}
}

// Validate 验证会话状态配置
func (c *StateConfig) Validate() error {
	if c.UnloadDelay < 0 {
		return fmt.Errorf("state: unload_delay cannot be negative")
	}
	return nil
}

// ============================================================================
//                              通知
// ============================================================================

// NotifyConfig 通知路由配置
type NotifyConfig struct {
	// UpdateClientView 状态或上下文变更时刷新客户端视图
	UpdateClientView bool `json:"update_client_view" env:"UPDATE_CLIENT_VIEW"`
}

// DefaultNotifyConfig 返回默认通知配置
func DefaultNotifyConfig() NotifyConfig {
	return NotifyConfig{
		UpdateClientView: true,
	}
}

// ============================================================================
//                              宿主
// ============================================================================

// HostConfig WebSocket 宿主配置
type HostConfig struct {
	// Listen 监听地址
	Listen string `json:"listen" env:"LISTEN"`

	// PingInterval 心跳间隔
	PingInterval Duration `json:"ping_interval" env:"PING_INTERVAL"`

	// WriteTimeout 单次写超时
	WriteTimeout Duration `json:"write_timeout" env:"WRITE_TIMEOUT"`
}

// DefaultHostConfig 返回默认宿主配置
func DefaultHostConfig() HostConfig {
	return HostConfig{
		Listen:       "127.0.0.1:7480",
		PingInterval: Duration(30 * time.Second),
		WriteTimeout: Duration(5 * time.Second),
	}
}

// Validate 验证宿主配置
func (c *HostConfig) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("host: listen cannot be empty")
	}
	if c.PingInterval <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("host: ping_interval and write_timeout must be positive")
	}
	return nil
}

// ============================================================================
//                              日志与指标
// ============================================================================

// LogConfig 日志配置
type LogConfig struct {
	// Level 级别描述，格式同 PERMSYNC_LOG_LEVEL：组件=级别,...,默认级别
	Level string `json:"level" env:"LEVEL"`

	// Format 输出格式：text 或 json
	Format string `json:"format" env:"FORMAT"`

	// FxDebug 输出依赖注入事件
	FxDebug bool `json:"fx_debug" env:"FX_DEBUG"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate 验证日志配置
func (c *LogConfig) Validate() error {
	switch strings.ToLower(c.Format) {
	case "", "text", "json":
		return nil
	default:
		return fmt.Errorf("log: unknown format %q", c.Format)
	}
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Enabled 是否启用指标收集
	Enabled bool `json:"enabled" env:"ENABLED"`

	// Path 宿主上暴露指标的 HTTP 路径
	Path string `json:"path" env:"PATH"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled: true,
		Path:    "/metrics",
	}
}
