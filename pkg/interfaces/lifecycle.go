package interfaces

import "time"

// ReadinessGate 进程级"已完全启动"信号
type ReadinessGate interface {
	// AwaitReady 等待就绪，最多等待 timeout
	//
	// 返回 false 表示超时，调用方应当继续执行而不是失败。
	AwaitReady(timeout time.Duration) bool
}
