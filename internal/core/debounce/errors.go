package debounce

import "errors"

var (
	// ErrNilEntry 工厂函数返回了空条目
	//
	// 这是内部一致性错误，Get 立即返回而不缓存任何内容。
	ErrNilEntry = errors.New("debounce: factory returned nil entry")

	// ErrZeroKey 键为零值
	ErrZeroKey = errors.New("debounce: zero key")

	// ErrCacheClosed 缓存已关闭
	ErrCacheClosed = errors.New("debounce: cache closed")
)
