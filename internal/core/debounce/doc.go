// Package debounce 实现按键合并的延迟请求与空闲驱逐缓存
//
// Request 把同一个键上的一串请求合并为一次延迟执行：
//
//	r := debounce.NewRequest(subject, 500*time.Millisecond, func(id types.SubjectID) error {
//	    return refresh(id)
//	})
//	r.Request() // 安排在 500ms 后执行
//	r.Request() // 已安排，不做任何事
//
// 状态只有 Idle 与 Scheduled 两种，切换使用 CAS，同一键任一时刻至多一个待执行调用。
// 执行前先复位为 Idle，因此执行期间到达的请求会安排新的一次调用。
// 没有取消：已安排的调用总会执行。
//
// 默认模式下截止时间在首次请求时确定，之后的请求不推迟它，
// 连续请求下的最坏延迟为一个窗口。WithExtendOnRequest 切换为尾沿模式：
// 每次请求把截止时间推到 now+T，定时器到期时发现截止时间未到则按剩余时间重新计时。
//
// Cache 为每个键懒构造一个值（通常是 *Request），
// 超过空闲时间未被 Get 的条目被驱逐。驱逐既在访问时惰性进行，
// 也可以通过 Start 启动后台清扫。
package debounce
