// Package notify 把状态重算与上下文变更事件汇入按主体去抖的刷新路径
//
// 每个在线主体在 debounce.Cache 中持有一个 debounce.Request。
// 去抖窗口结束后，刷新动作被投递到指定执行上下文，
// 在其中重新查找主体的连接并调用 interfaces.Refresher。
//
// 不在线的主体的信号直接丢弃，缓存不会为其增长。
package notify
