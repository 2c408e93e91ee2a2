package eventbus

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/eapache/queue"

	"github.com/dep2p/go-permsync/pkg/interfaces"
)

// HandlerFunc 事件处理函数
type HandlerFunc func(evt interface{})

// Dispatcher 按事件类型分发到处理函数
//
// 每个事件类型拥有独立的订阅和处理协程，同一类型的事件按发射顺序串行处理。
// 订阅使用不丢弃模式，收到的事件先转入无界队列再交给处理函数，
// 处理函数变慢只会让队列变长，不会丢失事件。
// 处理函数 panic 会被恢复并记录，不影响后续事件。
type Dispatcher struct {
	bus interfaces.EventBus

	mu       sync.Mutex
	handlers map[reflect.Type]interfaces.Subscription
	closed   bool

	wg sync.WaitGroup
}

// NewDispatcher 创建分发器
func NewDispatcher(bus interfaces.EventBus) *Dispatcher {
	return &Dispatcher{
		bus:      bus,
		handlers: make(map[reflect.Type]interfaces.Subscription),
	}
}

// On 注册事件类型的处理函数
//
// eventType 以指针形式声明，例如 new(types.EvtContextChanged)。
// 同一类型只能注册一次。订阅总是以 interfaces.Lossless 模式建立。
func (d *Dispatcher) On(eventType interface{}, fn HandlerFunc, opts ...interfaces.SubscriptionOpt) error {
	typ, err := elemType(eventType)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return fmt.Errorf("eventbus: dispatcher closed")
	}
	if _, ok := d.handlers[typ]; ok {
		return fmt.Errorf("eventbus: handler already registered for %s", typ)
	}

	opts = append([]interfaces.SubscriptionOpt{interfaces.Lossless()}, opts...)
	sub, err := d.bus.Subscribe(eventType, opts...)
	if err != nil {
		return err
	}
	d.handlers[typ] = sub

	l := &handlerLoop{
		pending: queue.New(),
		wake:    make(chan struct{}, 1),
	}
	d.wg.Add(2)
	go d.drain(sub, l)
	go d.run(typ, fn, l)
	return nil
}

// ============================================================================
//                              处理队列
// ============================================================================

// handlerLoop 单个事件类型的待处理事件
type handlerLoop struct {
	mu      sync.Mutex
	pending *queue.Queue
	done    bool
	wake    chan struct{}
}

func (l *handlerLoop) push(evt interface{}) {
	l.mu.Lock()
	l.pending.Add(evt)
	l.mu.Unlock()
	l.signal()
}

func (l *handlerLoop) finish() {
	l.mu.Lock()
	l.done = true
	l.mu.Unlock()
	l.signal()
}

func (l *handlerLoop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// next 取出下一个事件，队列已空且订阅结束时返回 false
func (l *handlerLoop) next() (interface{}, bool) {
	l.mu.Lock()
	for l.pending.Length() == 0 {
		if l.done {
			l.mu.Unlock()
			return nil, false
		}
		l.mu.Unlock()
		<-l.wake
		l.mu.Lock()
	}
	evt := l.pending.Remove()
	l.mu.Unlock()
	return evt, true
}

// drain 把订阅通道中的事件转入队列
func (d *Dispatcher) drain(sub interfaces.Subscription, l *handlerLoop) {
	defer d.wg.Done()
	for evt := range sub.Out() {
		l.push(evt)
	}
	l.finish()
}

// run 按顺序执行处理函数
func (d *Dispatcher) run(typ reflect.Type, fn HandlerFunc, l *handlerLoop) {
	defer d.wg.Done()
	for {
		evt, ok := l.next()
		if !ok {
			return
		}
		d.invoke(typ, fn, evt)
	}
}

func (d *Dispatcher) invoke(typ reflect.Type, fn HandlerFunc, evt interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("事件处理函数 panic", "type", typ.String(), "panic", r)
		}
	}()
	fn(evt)
}

// Close 取消所有订阅并等待处理协程退出
//
// 已进入队列的事件会先处理完。
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	subs := make([]interfaces.Subscription, 0, len(d.handlers))
	for _, sub := range d.handlers {
		subs = append(subs, sub)
	}
	d.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	d.wg.Wait()
	return nil
}
