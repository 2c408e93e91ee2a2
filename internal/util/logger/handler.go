package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// componentKey 与 pkg/lib/log.LazyLogger 注入的属性名一致
const componentKey = "component"

// componentHandler 支持按组件控制级别的 slog.Handler
type componentHandler struct {
	cfg   *Config
	level slog.Level
	inner slog.Handler
}

// NewHandler 创建按组件过滤级别的 Handler
func NewHandler(w io.Writer, cfg *Config) slog.Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	opts := &slog.HandlerOptions{
		// 过滤由 componentHandler 完成，内层放行所有级别
		Level:     slog.LevelDebug,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			return a
		},
	}

	var inner slog.Handler
	if cfg.Format == FormatJSON {
		inner = slog.NewJSONHandler(w, opts)
	} else {
		inner = slog.NewTextHandler(w, opts)
	}

	return &componentHandler{
		cfg:   cfg,
		level: cfg.DefaultLevel,
		inner: inner,
	}
}

// Enabled 检查是否启用指定级别
func (h *componentHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle 处理日志记录
func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

// WithAttrs 添加属性，遇到组件属性时切换到该组件的级别
func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	level := h.level
	for _, a := range attrs {
		if a.Key == componentKey {
			level = h.cfg.LevelFor(a.Value.String())
		}
	}
	return &componentHandler{
		cfg:   h.cfg,
		level: level,
		inner: h.inner.WithAttrs(attrs),
	}
}

// WithGroup 添加组
func (h *componentHandler) WithGroup(name string) slog.Handler {
	return &componentHandler{
		cfg:   h.cfg,
		level: h.level,
		inner: h.inner.WithGroup(name),
	}
}

// Setup 将默认 logger 切换为按组件过滤的 handler
//
// w 为 nil 时输出到 stderr。返回安装的 logger。
func Setup(w io.Writer, cfg *Config) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	l := slog.New(NewHandler(w, cfg))
	slog.SetDefault(l)
	return l
}

// discardHandler 丢弃所有日志的 Handler（用于测试）
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Discard 返回一个丢弃所有日志的 Logger
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}
