package interfaces

import "github.com/dep2p/go-permsync/pkg/types"

// Connection 一个入站连接
//
// 由宿主（如 internal/host/wshost）实现。所有方法并发安全。
type Connection interface {
	// ID 返回连接标识
	ID() types.ConnID

	// Subject 返回连接主体标识
	Subject() types.SubjectID

	// DisplayName 返回主体显示名
	DisplayName() string

	// Locale 返回客户端语言标签（如 "en-US"），未知时为空
	Locale() string

	// Online 传输层是否仍认为该连接在线
	Online() bool

	// Kick 以给定消息断开连接
	Kick(message string) error
}

// Refresher 刷新客户端可见状态
//
// 去抖后的动作通过它作用于在线连接，总是在指定执行上下文中调用。
type Refresher interface {
	Refresh(conn Connection) error
}

// RefresherFunc 函数适配器
type RefresherFunc func(conn Connection) error

// Refresh 实现 Refresher
func (f RefresherFunc) Refresh(conn Connection) error {
	return f(conn)
}

// Transport 传输/会话访问器
type Transport interface {
	// IsLive 连接是否仍被传输层视为存活
	IsLive(conn Connection) bool

	// Terminate 以本地化消息终止连接
	Terminate(conn Connection, message string) error

	// IsOnline 主体当前是否有已激活的连接
	IsOnline(subject types.SubjectID) bool

	// Connection 返回主体当前的连接
	Connection(subject types.SubjectID) (Connection, bool)
}
