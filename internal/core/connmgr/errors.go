package connmgr

import "errors"

// 连接注册表错误定义
var (
	// ErrAlreadyRegistered 连接已注册
	ErrAlreadyRegistered = errors.New("connmgr: connection already registered")

	// ErrDuplicateSubject 主体已有一个注册中的连接
	ErrDuplicateSubject = errors.New("connmgr: subject already connected")

	// ErrNotRegistered 连接未注册
	ErrNotRegistered = errors.New("connmgr: connection not registered")

	// ErrManagerClosed 管理器已关闭
	ErrManagerClosed = errors.New("connmgr: manager closed")
)
