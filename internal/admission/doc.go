// Package admission 实现连接准入流水线
//
// 每个主体的状态机：
//
//	Connecting → PreAdmitted → Active
//	Connecting → Denied
//	任意阶段 → Disconnected（清除条目）
//
// 三个阶段由宿主驱动：
//   - PreAdmit: 异步预登录钩子。等待进程就绪（有上限），确认连接仍存活，
//     加载会话状态，发出 types.EvtLoginProcess
//   - Activate: 会话进入活动配置时调用。状态缺失则拒绝连接，
//     并区分"从未预登录"与"预登录过但状态已消失"
//   - Disconnect: 同步清理主体条目并安排卸载，
//     下一个 tick 再通知上下文子系统主体已离开
//
// 加载失败只踢掉该连接，不会重试，也不会影响进程。
package admission
