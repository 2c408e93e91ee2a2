// Package interfaces 定义 permsync 的公共接口
//
// 准入流水线与通知路由只通过这些窄接口访问外部协作者，
// 一个接口文件对应一个实现目录：
//   - connection.go - 连接与传输访问器（internal/core/connmgr）
//   - statestore.go - 会话状态存储（internal/core/statestore）
//   - lifecycle.go  - 启动就绪门（internal/core/lifecycle）
//   - scheduler.go  - 指定执行上下文（internal/core/scheduler）
//   - eventbus.go   - 事件总线（internal/core/eventbus）
//   - contexts.go   - 上下文子系统（internal/core/contexts）
//   - localizer.go  - 本地化（internal/i18n）
package interfaces
