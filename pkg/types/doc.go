// Package types 定义 permsync 的基础类型
//
// 这是整个系统的最底层包，不依赖任何其他 permsync 内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - ids.go    - SubjectID, ConnID
//   - events.go - 事件类型（登录处理、状态重算、上下文变更）
package types
