package eventbus

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-permsync/pkg/interfaces"
	"github.com/dep2p/go-permsync/pkg/lib/log"
)

var logger = log.Logger("core/eventbus")

// DefaultBufferSize 默认订阅缓冲区大小
const DefaultBufferSize = 64

var (
	// ErrInvalidEventType 无效的事件类型
	ErrInvalidEventType = errors.New("eventbus: invalid event type")
	// ErrNonPointerType 非指针类型
	ErrNonPointerType = errors.New("eventbus: event type must be a pointer")
	// ErrEmitterClosed 发射器已关闭
	ErrEmitterClosed = errors.New("eventbus: emitter closed")
)

// Bus 事件总线
type Bus struct {
	mu sync.RWMutex

	// nodes 事件类型节点映射
	nodes map[reflect.Type]*node
}

var _ interfaces.EventBus = (*Bus)(nil)

// node 事件类型节点
type node struct {
	lk        sync.Mutex
	typ       reflect.Type
	sinks     []*Subscription
	nEmitters atomic.Int32
	keepLast  bool
	last      interface{}
	dropCount atomic.Int64
}

// NewBus 创建新的事件总线
func NewBus() *Bus {
	return &Bus{
		nodes: make(map[reflect.Type]*node),
	}
}

// elemType 校验事件类型声明并返回元素类型
func elemType(eventType interface{}) (reflect.Type, error) {
	if eventType == nil {
		return nil, ErrInvalidEventType
	}
	typ := reflect.TypeOf(eventType)
	if typ.Kind() != reflect.Ptr {
		return nil, ErrNonPointerType
	}
	return typ.Elem(), nil
}

// Subscribe 订阅事件
func (b *Bus) Subscribe(eventType interface{}, opts ...interfaces.SubscriptionOpt) (interfaces.Subscription, error) {
	typ, err := elemType(eventType)
	if err != nil {
		return nil, err
	}

	settings := &interfaces.SubscriptionSettings{Buffer: DefaultBufferSize}
	for _, opt := range opts {
		opt(settings)
	}

	sub := &Subscription{
		bus:      b,
		typ:      typ,
		out:      make(chan interface{}, settings.Buffer),
		lossless: settings.Lossless,
		done:     make(chan struct{}),
	}

	b.withNode(typ, func(n *node) {
		n.sinks = append(n.sinks, sub)

		// 有状态节点：立即投递最后一个事件
		if n.keepLast && n.last != nil {
			select {
			case sub.out <- n.last:
			default:
			}
		}
	})

	return sub, nil
}

// Emitter 获取发射器
func (b *Bus) Emitter(eventType interface{}, opts ...interfaces.EmitterOpt) (interfaces.Emitter, error) {
	typ, err := elemType(eventType)
	if err != nil {
		return nil, err
	}

	settings := &interfaces.EmitterSettings{}
	for _, opt := range opts {
		opt(settings)
	}

	var n *node
	b.withNode(typ, func(nd *node) {
		n = nd
		n.nEmitters.Add(1)
		if settings.Stateful {
			n.keepLast = true
		}
	})

	return &Emitter{bus: b, node: n, typ: typ}, nil
}

// GetAllEventTypes 返回所有已注册的事件类型（零值实例）
func (b *Bus) GetAllEventTypes() []interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]interface{}, 0, len(b.nodes))
	for typ := range b.nodes {
		out = append(out, reflect.Zero(typ).Interface())
	}
	return out
}

// withNode 在节点锁内执行操作，节点不存在时创建
func (b *Bus) withNode(typ reflect.Type, cb func(*node)) {
	b.mu.Lock()
	n, ok := b.nodes[typ]
	if !ok {
		n = &node{typ: typ}
		b.nodes[typ] = n
	}
	n.lk.Lock()
	b.mu.Unlock()

	cb(n)
	n.lk.Unlock()
}

// tryDropNode 没有订阅者和发射器时删除节点
func (b *Bus) tryDropNode(typ reflect.Type) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[typ]
	if !ok {
		return
	}

	n.lk.Lock()
	idle := len(n.sinks) == 0 && n.nEmitters.Load() == 0
	n.lk.Unlock()

	if idle {
		delete(b.nodes, typ)
	}
}

// removeSub 移除订阅
func (b *Bus) removeSub(sub *Subscription) {
	b.mu.Lock()
	n, ok := b.nodes[sub.typ]
	if !ok {
		b.mu.Unlock()
		return
	}
	n.lk.Lock()
	b.mu.Unlock()

	for i, s := range n.sinks {
		if s == sub {
			n.sinks = append(n.sinks[:i], n.sinks[i+1:]...)
			break
		}
	}
	shouldDrop := len(n.sinks) == 0 && n.nEmitters.Load() == 0
	n.lk.Unlock()

	if shouldDrop {
		b.tryDropNode(sub.typ)
	}
}

// emit 发射事件到所有订阅者
//
// 普通订阅缓冲区满时丢弃；不丢弃订阅等待消费或订阅关闭。
func (n *node) emit(event interface{}) {
	n.lk.Lock()
	defer n.lk.Unlock()

	if n.keepLast {
		n.last = event
	}

	for _, sub := range n.sinks {
		if sub.lossless {
			select {
			case sub.out <- event:
			case <-sub.done:
			}
			continue
		}

		select {
		case sub.out <- event:
		default:
			dropped := n.dropCount.Add(1)
			// 每丢弃 100 个事件警告一次
			if dropped%100 == 1 {
				logger.Warn("慢消费者检测",
					"dropped", dropped,
					"type", n.typ.String(),
					"reason", "subscriber buffer full")
			}
		}
	}
}
