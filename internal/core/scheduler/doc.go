// Package scheduler 实现指定执行上下文
//
// Loop 是一个单协程的串行执行器，所有修改连接或会话的操作都投递到这里执行：
//   - RunOnDesignated: 尽快执行，按提交顺序
//   - RunAfterTick: 在下一个 tick 执行，按提交顺序
//
// 任务 panic 会被恢复并记录，不影响后续任务。
package scheduler
