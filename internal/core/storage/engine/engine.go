package engine

import (
	"fmt"
	"os"
	"time"
)

// Engine 存储引擎接口
type Engine interface {
	// Get 获取指定键的值，不存在时返回 ErrNotFound
	Get(key []byte) ([]byte, error)

	// Put 设置键值对
	Put(key, value []byte) error

	// Delete 删除指定键
	Delete(key []byte) error

	// Has 检查键是否存在
	Has(key []byte) (bool, error)

	// ForEach 按键序遍历前缀下的所有键值，fn 返回错误时停止
	ForEach(prefix []byte, fn func(key, value []byte) error) error

	// Start 启动后台任务（GC 等）
	Start() error

	// Close 关闭引擎
	Close() error
}

// Config 存储引擎配置
type Config struct {
	// Path 数据目录路径，InMemory 为 false 时必需
	Path string

	// InMemory 内存模式，数据不落盘
	InMemory bool

	// SyncWrites 是否同步写入
	SyncWrites bool

	// GCInterval 值日志垃圾回收间隔，0 表示禁用（内存模式下总是禁用）
	GCInterval time.Duration

	// GCDiscardRatio 垃圾回收丢弃比例
	GCDiscardRatio float64

	// BlockCacheSize 块缓存大小（字节）
	BlockCacheSize int64
}

// DefaultConfig 返回默认配置
func DefaultConfig(path string) *Config {
	return &Config{
		Path:           path,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
		BlockCacheSize: 64 << 20,
	}
}

// MemoryConfig 返回内存模式配置
func MemoryConfig() *Config {
	cfg := DefaultConfig("")
	cfg.InMemory = true
	cfg.GCInterval = 0
	return cfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidConfig)
	}
	if c.GCDiscardRatio < 0 || c.GCDiscardRatio >= 1 {
		return fmt.Errorf("%w: gc discard ratio must be in [0, 1)", ErrInvalidConfig)
	}
	return nil
}

// EnsureDir 确保数据目录存在
func (c *Config) EnsureDir() error {
	if c.InMemory {
		return nil
	}
	return os.MkdirAll(c.Path, 0o755)
}
