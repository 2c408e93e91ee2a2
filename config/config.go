// Package config 提供统一的配置管理
//
// 本包采用与组件一一对应的子配置：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义，带 DefaultXxxConfig 与 Validate
//   - 支持从 JSON 文件加载
//   - 支持 PERMSYNC_ 前缀的环境变量覆盖
//
// 使用示例：
//
//	cfg, err := config.Load("permsync.json")
//	if err != nil {
//	    return err
//	}
//	cfg.Debounce.Window = config.Duration(250 * time.Millisecond)
package config

import "errors"

// Config 是 permsync 的完整配置结构
//
// 配置按照功能模块组织：
//   - Admission: 准入流水线
//   - Debounce: 去抖窗口与缓存
//   - Scheduler: 指定执行上下文
//   - Storage: 用户记录存储
//   - State: 会话状态存储
//   - Notify: 通知路由
//   - Host: WebSocket 宿主
//   - Log: 日志
//   - Metrics: 指标
type Config struct {
	// Admission 准入配置
	Admission AdmissionConfig `json:"admission" envPrefix:"ADMISSION_"`

	// Debounce 去抖配置
	Debounce DebounceConfig `json:"debounce" envPrefix:"DEBOUNCE_"`

	// Scheduler 调度器配置
	Scheduler SchedulerConfig `json:"scheduler" envPrefix:"SCHEDULER_"`

	// Storage 存储配置
	Storage StorageConfig `json:"storage" envPrefix:"STORAGE_"`

	// State 会话状态配置
	State StateConfig `json:"state" envPrefix:"STATE_"`

	// Notify 通知配置
	Notify NotifyConfig `json:"notify" envPrefix:"NOTIFY_"`

	// Host 宿主配置
	Host HostConfig `json:"host" envPrefix:"HOST_"`

	// Log 日志配置
	Log LogConfig `json:"log" envPrefix:"LOG_"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics" envPrefix:"METRICS_"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Admission: DefaultAdmissionConfig(),
		Debounce:  DefaultDebounceConfig(),
		Scheduler: DefaultSchedulerConfig(),
		Storage:   DefaultStorageConfig(),
		State:     DefaultStateConfig(),
		Notify:    DefaultNotifyConfig(),
		Host:      DefaultHostConfig(),
		Log:       DefaultLogConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	return errors.Join(
		c.Admission.Validate(),
		c.Debounce.Validate(),
		c.Scheduler.Validate(),
		c.Storage.Validate(),
		c.State.Validate(),
		c.Host.Validate(),
		c.Log.Validate(),
	)
}
