// Package contexts 计算并缓存主体的上下文集合
//
// 上下文是附加在主体上的键值属性（如语言、世界、服务器），
// 由注册的 Calculator 计算，按主体缓存一小段时间。
//
// Manager 实现 interfaces.ContextSignaler：
//   - SignalContextUpdate: 使缓存失效并发出 types.EvtContextChanged
//   - OnQuit: 丢弃主体的缓存
package contexts
