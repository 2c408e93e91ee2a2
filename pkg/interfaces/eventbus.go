package interfaces

// EventBus 定义事件总线接口
//
// EventBus 提供类型安全的事件发布/订阅机制，事件类型以指针形式声明：
//
//	sub, _ := bus.Subscribe(new(types.EvtStateRecalculated))
//	em, _ := bus.Emitter(new(types.EvtLoginProcess))
type EventBus interface {
	// Subscribe 订阅指定类型的事件
	Subscribe(eventType interface{}, opts ...SubscriptionOpt) (Subscription, error)

	// Emitter 获取指定事件类型的发射器
	Emitter(eventType interface{}, opts ...EmitterOpt) (Emitter, error)

	// GetAllEventTypes 返回所有已注册的事件类型
	GetAllEventTypes() []interface{}
}

// Subscription 定义事件订阅接口
type Subscription interface {
	// Out 返回接收事件的通道
	Out() <-chan interface{}

	// Close 取消订阅
	Close() error
}

// Emitter 定义事件发射器接口
type Emitter interface {
	// Emit 发射事件
	Emit(event interface{}) error

	// Close 关闭发射器
	Close() error
}

// SubscriptionOpt 订阅选项函数类型
type SubscriptionOpt func(*SubscriptionSettings)

// EmitterOpt 发射器选项函数类型
type EmitterOpt func(*EmitterSettings)

// SubscriptionSettings 订阅设置
type SubscriptionSettings struct {
	Buffer int

	// Lossless 缓冲区满时阻塞发射者而不是丢弃事件
	Lossless bool
}

// EmitterSettings 发射器设置
type EmitterSettings struct {
	Stateful bool
}

// BufSize 设置订阅缓冲区大小
func BufSize(size int) SubscriptionOpt {
	return func(s *SubscriptionSettings) {
		s.Buffer = size
	}
}

// Lossless 设置订阅为不丢弃模式
//
// 缓冲区满时 Emit 等待订阅者消费，直到订阅关闭。
// 订阅者必须持续读取 Out()，否则会阻塞同类型的所有发射者。
func Lossless() SubscriptionOpt {
	return func(s *SubscriptionSettings) {
		s.Lossless = true
	}
}

// Stateful 设置发射器为有状态模式
//
// 有状态发射器会保留最后一个事件，新订阅者订阅时立即收到。
func Stateful() EmitterOpt {
	return func(s *EmitterSettings) {
		s.Stateful = true
	}
}
