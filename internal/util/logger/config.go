// Package logger 安装 permsync 的默认 slog handler
//
// 支持通过环境变量配置日志级别：
//   - PERMSYNC_LOG_LEVEL: 按组件配置级别
//     格式: 组件=级别,组件=级别,默认级别
//     示例: core/debounce=debug,admission=warn,info
//   - PERMSYNC_LOG_FORMAT: 日志格式 (text 或 json)
//   - PERMSYNC_LOG_ADD_SOURCE: 是否输出源码位置
//
// 组件名来自 pkg/lib/log.Logger 注入的 "component" 属性；
// 组件级别按前缀匹配，"core" 同时作用于 "core/debounce" 与 "core/scheduler"。
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// LogFormat 日志输出格式
type LogFormat int

const (
	// FormatText 文本格式（默认）
	FormatText LogFormat = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// Config 日志配置
type Config struct {
	// DefaultLevel 默认日志级别
	DefaultLevel slog.Level

	// ComponentLevels 各组件的日志级别
	ComponentLevels map[string]slog.Level

	// Format 输出格式
	Format LogFormat

	// AddSource 是否添加源码位置
	AddSource bool
}

// DefaultConfig 返回默认日志配置
func DefaultConfig() *Config {
	return &Config{
		DefaultLevel:    slog.LevelInfo,
		ComponentLevels: make(map[string]slog.Level),
		Format:          FormatText,
	}
}

// LevelFor 获取指定组件的日志级别
//
// 选择最长的前缀匹配，没有匹配时返回默认级别。
func (c *Config) LevelFor(component string) slog.Level {
	if level, ok := c.ComponentLevels[component]; ok {
		return level
	}

	best := -1
	level := c.DefaultLevel
	for prefix, l := range c.ComponentLevels {
		if !strings.HasPrefix(component, prefix+"/") {
			continue
		}
		if len(prefix) > best {
			best = len(prefix)
			level = l
		}
	}
	return level
}

// ConfigFromEnv 从环境变量解析配置
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if levelStr := os.Getenv("PERMSYNC_LOG_LEVEL"); levelStr != "" {
		ParseLevelSpec(cfg, levelStr)
	}

	if formatStr := os.Getenv("PERMSYNC_LOG_FORMAT"); formatStr != "" {
		cfg.Format = ParseFormat(formatStr)
	}

	if addSourceStr := os.Getenv("PERMSYNC_LOG_ADD_SOURCE"); addSourceStr != "" {
		cfg.AddSource = addSourceStr != "false" && addSourceStr != "0"
	}

	return cfg
}

// ParseFormat 解析输出格式名称，未知值按 text 处理
func ParseFormat(name string) LogFormat {
	if strings.EqualFold(strings.TrimSpace(name), "json") {
		return FormatJSON
	}
	return FormatText
}

// ParseLevelSpec 解析日志级别配置字符串
// 格式: component=level,component=level,defaultLevel
func ParseLevelSpec(cfg *Config, spec string) {
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		component, levelName, found := strings.Cut(part, "=")
		if !found {
			if level, ok := ParseLevel(part); ok {
				cfg.DefaultLevel = level
			}
			continue
		}

		if level, ok := ParseLevel(strings.TrimSpace(levelName)); ok {
			cfg.ComponentLevels[strings.TrimSpace(component)] = level
		}
	}
}

// ParseLevel 解析日志级别名称
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
