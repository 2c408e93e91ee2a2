package storage

import (
	"errors"

	"github.com/dep2p/go-permsync/internal/core/storage/engine"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = engine.ErrNotFound

	// ErrInvalidSubject 主体标识无效
	ErrInvalidSubject = errors.New("storage: invalid subject")
)
