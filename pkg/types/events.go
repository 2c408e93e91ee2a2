package types

// ============================================================================
//                              准入事件
// ============================================================================

// EvtLoginProcess 预登录处理完成事件
//
// 预登录阶段结束时发出，无论加载成功与否。
// State 为 nil 表示加载失败、连接已被拒绝；下游订阅者据此区分"拒绝"与"准入"。
type EvtLoginProcess struct {
	// Subject 主体标识
	Subject SubjectID

	// Name 主体显示名
	Name string

	// State 已加载的会话状态，失败时为 nil
	State any
}

// Denied 是否为拒绝结果
func (e EvtLoginProcess) Denied() bool {
	return e.State == nil
}

// ============================================================================
//                              通知事件
// ============================================================================

// EvtStateRecalculated 主体状态已重算
//
// 状态加载完成或权限数据变更后发出。
type EvtStateRecalculated struct {
	Subject SubjectID
}

// EvtContextChanged 上下文变更事件
//
// Source 是触发变更的实体。只有当 Source 是一个在线连接时，
// 通知路由才会为其主体安排刷新。
type EvtContextChanged struct {
	Source any
}
