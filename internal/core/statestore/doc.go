// Package statestore 管理已加载的会话状态
//
// Store 实现 interfaces.StateStore：
//   - Load: 从 storage.Repository 加载用户记录并登记为会话状态，
//     同一主体的并发加载通过 singleflight 合并
//   - Lookup: 非阻塞查询
//   - ScheduleUnload: 延迟卸载，延迟期间重新加载或主体仍在线则保留
//
// 状态加载完成以及权限数据变更后发出 types.EvtStateRecalculated。
package statestore
