package admission

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-permsync/pkg/types"
)

var (
	// ErrConnectionGone 预登录时连接已不再存活
	ErrConnectionGone = errors.New("admission: connection no longer live")

	// ErrLoadFailed 状态加载失败
	ErrLoadFailed = errors.New("admission: state load failed")

	// ErrNeverPreAdmitted 主体在本进程生命周期内从未完成预登录
	ErrNeverPreAdmitted = errors.New("admission: subject was never pre-admitted")

	// ErrStateVanished 主体完成过预登录，但状态已不存在
	ErrStateVanished = errors.New("admission: state vanished after pre-admission")
)

// LoadError 预登录加载失败
//
// errors.Is(err, ErrLoadFailed) 成立，同时可以展开到存储返回的原始错误。
type LoadError struct {
	Subject types.SubjectID
	Name    string
	Err     error
}

// Error 实现 error
func (e *LoadError) Error() string {
	return fmt.Sprintf("admission: load state for %s (%s): %v", e.Subject.ShortString(), e.Name, e.Err)
}

// Unwrap 返回 ErrLoadFailed 与原始错误
func (e *LoadError) Unwrap() []error {
	return []error{ErrLoadFailed, e.Err}
}

// DenialError 激活阶段拒绝
//
// Reason 为 ErrNeverPreAdmitted 或 ErrStateVanished。
type DenialError struct {
	Subject types.SubjectID
	Name    string
	Reason  error
}

// Error 实现 error
func (e *DenialError) Error() string {
	return fmt.Sprintf("admission: deny %s (%s): %v", e.Subject.ShortString(), e.Name, e.Reason)
}

// Unwrap 返回拒绝原因
func (e *DenialError) Unwrap() error {
	return e.Reason
}
