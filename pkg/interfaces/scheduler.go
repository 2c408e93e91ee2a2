package interfaces

// Scheduler 宿主的延迟执行调度器
//
// 指定执行上下文是单一的串行上下文，所有修改连接/会话的操作都在其中执行。
type Scheduler interface {
	// RunOnDesignated 在指定执行上下文中尽快执行 task
	RunOnDesignated(task func())

	// RunAfterTick 在指定执行上下文的下一个 tick 执行 task
	RunAfterTick(task func())
}
