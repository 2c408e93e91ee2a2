// Package eventbus 实现进程内事件总线
//
// 提供类型安全的事件发布/订阅机制，支持：
//   - 多订阅者
//   - 缓冲区配置
//   - 发射器引用计数
//   - 有状态模式（Stateful）
//   - 按事件类型分发到处理函数（Dispatcher）
//
// # 快速开始
//
//	bus := eventbus.NewBus()
//
//	d := eventbus.NewDispatcher(bus)
//	defer d.Close()
//	_ = d.On(new(types.EvtStateRecalculated), func(evt any) {
//	    e := evt.(types.EvtStateRecalculated)
//	    // 处理事件
//	})
//
//	em, _ := bus.Emitter(new(types.EvtStateRecalculated))
//	defer em.Close()
//	em.Emit(types.EvtStateRecalculated{Subject: id})
//
// # 并发安全
//
//   - 订阅/取消订阅：RWMutex 保护
//   - 发射器引用计数：atomic.Int32
//   - 通道关闭：closeOnce 防止重复
//   - 慢消费者：缓冲区满时丢弃并按 100 条节流告警，发射者永不阻塞
package eventbus
