package eventbus

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Subscription 订阅
type Subscription struct {
	bus       *Bus
	typ       reflect.Type
	out       chan interface{}
	lossless  bool
	done      chan struct{}
	closeOnce sync.Once
}

// Out 返回事件通道
func (s *Subscription) Out() <-chan interface{} {
	return s.out
}

// Close 取消订阅
//
// 可以多次调用。先唤醒阻塞在该订阅上的发射者，再从总线移除，最后关闭通道；
// 移除后不会再有发射者写入该通道。
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.bus.removeSub(s)
		close(s.out)
	})
	return nil
}

// Emitter 事件发射器
type Emitter struct {
	bus       *Bus
	node      *node
	typ       reflect.Type
	closed    atomic.Bool
	closeOnce sync.Once
}

// Emit 发射事件
func (e *Emitter) Emit(event interface{}) error {
	if e.closed.Load() {
		return ErrEmitterClosed
	}
	e.node.emit(event)
	return nil
}

// Close 关闭发射器，引用计数归零时尝试删除节点
func (e *Emitter) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		if e.node.nEmitters.Add(-1) == 0 {
			e.bus.tryDropNode(e.typ)
		}
	})
	return nil
}
