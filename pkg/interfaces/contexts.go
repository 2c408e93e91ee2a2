package interfaces

import "github.com/dep2p/go-permsync/pkg/types"

// ContextSignaler 上下文子系统
type ContextSignaler interface {
	// SignalContextUpdate 通知连接主体的上下文属性需要重新计算
	SignalContextUpdate(conn Connection)

	// OnQuit 主体离开后清理
	OnQuit(subject types.SubjectID)
}
