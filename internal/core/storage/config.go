package storage

import (
	"time"

	"github.com/dep2p/go-permsync/config"
	"github.com/dep2p/go-permsync/internal/core/storage/engine"
)

// Config Storage 模块配置
type Config struct {
	// Path 存储路径（BadgerDB 数据库目录）
	Path string

	// InMemory 内存模式
	InMemory bool

	// GCInterval 垃圾回收间隔
	GCInterval time.Duration

	// CacheSize 用户记录读缓存条目数
	CacheSize int

	// DefaultGroup 新用户的默认权限组
	DefaultGroup string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Path:         "./data/permsync.db",
		GCInterval:   10 * time.Minute,
		CacheSize:    1024,
		DefaultGroup: "default",
	}
}

// ConfigFromUnified 从统一配置创建 Storage 配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}

	if cfg.Storage.DataDir != "" {
		c.Path = cfg.Storage.DBPath()
	}
	c.InMemory = cfg.Storage.InMemory
	if cfg.Storage.CacheSize > 0 {
		c.CacheSize = cfg.Storage.CacheSize
	}
	if cfg.Storage.DefaultGroup != "" {
		c.DefaultGroup = cfg.Storage.DefaultGroup
	}
	return c
}

// ToEngineConfig 转换为引擎配置
func (c Config) ToEngineConfig() *engine.Config {
	if c.InMemory {
		return engine.MemoryConfig()
	}
	ec := engine.DefaultConfig(c.Path)
	ec.GCInterval = c.GCInterval
	return ec
}
