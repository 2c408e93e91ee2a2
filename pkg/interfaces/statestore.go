package interfaces

import (
	"context"

	"github.com/dep2p/go-permsync/pkg/types"
)

// SessionState 外部拥有的会话状态
//
// 存在即表示"状态已加载并就绪"，准入流水线只检查其存在性。
type SessionState interface {
	Subject() types.SubjectID
}

// StateStore 会话状态存储
type StateStore interface {
	// Load 加载主体状态，可能阻塞在网络或存储 I/O 上
	Load(ctx context.Context, subject types.SubjectID, name string) (SessionState, error)

	// Lookup 非阻塞地查询已加载的状态
	Lookup(subject types.SubjectID) (SessionState, bool)

	// ScheduleUnload 请求存储在适当时机销毁主体状态
	ScheduleUnload(subject types.SubjectID)
}
