package connmgr

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/dep2p/go-permsync/pkg/interfaces"
	"github.com/dep2p/go-permsync/pkg/lib/log"
	"github.com/dep2p/go-permsync/pkg/types"
)

var logger = log.Logger("core/connmgr")

// entry 已注册连接
type entry struct {
	conn         interfaces.Connection
	registeredAt time.Time
	active       bool
	terminated   bool
}

// Info 连接快照
type Info struct {
	ID           types.ConnID
	Subject      types.SubjectID
	DisplayName  string
	RegisteredAt time.Time
	Active       bool
}

// Manager 连接注册表
type Manager struct {
	clk clock.Clock

	mu        sync.RWMutex
	conns     map[types.ConnID]*entry
	bySubject map[types.SubjectID]types.ConnID
	closed    bool
}

var _ interfaces.Transport = (*Manager)(nil)

// Option 选项
type Option func(*Manager)

// WithClock 设置时钟
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) {
		if clk != nil {
			m.clk = clk
		}
	}
}

// New 创建连接注册表
func New(opts ...Option) *Manager {
	m := &Manager{
		clk:       clock.New(),
		conns:     make(map[types.ConnID]*entry),
		bySubject: make(map[types.SubjectID]types.ConnID),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register 注册新连接
func (m *Manager) Register(conn interfaces.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	if _, ok := m.conns[conn.ID()]; ok {
		return ErrAlreadyRegistered
	}
	if other, ok := m.bySubject[conn.Subject()]; ok {
		if e := m.conns[other]; e != nil && !e.terminated && e.conn.Online() {
			return fmt.Errorf("%w: %s", ErrDuplicateSubject, conn.Subject().ShortString())
		}
	}

	m.conns[conn.ID()] = &entry{conn: conn, registeredAt: m.clk.Now()}
	m.bySubject[conn.Subject()] = conn.ID()

	logger.Debug("连接已注册",
		"conn", conn.ID(),
		"subject", conn.Subject().ShortString(),
		"name", conn.DisplayName())
	return nil
}

// Unregister 移除连接，重复调用无副作用
func (m *Manager) Unregister(conn interfaces.Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conns[conn.ID()]; !ok {
		return
	}
	delete(m.conns, conn.ID())
	if id, ok := m.bySubject[conn.Subject()]; ok && id == conn.ID() {
		delete(m.bySubject, conn.Subject())
	}

	logger.Debug("连接已移除", "conn", conn.ID(), "subject", conn.Subject().ShortString())
}

// MarkActive 将连接标记为主体的在线连接
func (m *Manager) MarkActive(conn interfaces.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.conns[conn.ID()]
	if !ok || e.terminated {
		return ErrNotRegistered
	}
	e.active = true
	m.bySubject[conn.Subject()] = conn.ID()
	return nil
}

// IsLive 连接是否仍被视为存活
func (m *Manager) IsLive(conn interfaces.Connection) bool {
	m.mu.RLock()
	e, ok := m.conns[conn.ID()]
	terminated := ok && e.terminated
	m.mu.RUnlock()

	return ok && !terminated && conn.Online()
}

// Terminate 以消息踢出连接
//
// 连接立即被视为不再存活；注册记录在宿主调用 Unregister 时移除。
func (m *Manager) Terminate(conn interfaces.Connection, message string) error {
	m.mu.Lock()
	if e, ok := m.conns[conn.ID()]; ok {
		e.terminated = true
		e.active = false
	}
	m.mu.Unlock()

	logger.Info("终止连接",
		"conn", conn.ID(),
		"subject", conn.Subject().ShortString(),
		"reason", message)

	if err := conn.Kick(message); err != nil {
		return fmt.Errorf("kick %s: %w", conn.ID(), err)
	}
	return nil
}

// IsOnline 主体是否有已激活且在线的连接
func (m *Manager) IsOnline(subject types.SubjectID) bool {
	_, ok := m.Connection(subject)
	return ok
}

// Connection 返回主体当前已激活且在线的连接
func (m *Manager) Connection(subject types.SubjectID) (interfaces.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.bySubject[subject]
	if !ok {
		return nil, false
	}
	e := m.conns[id]
	if e == nil || !e.active || e.terminated || !e.conn.Online() {
		return nil, false
	}
	return e.conn, true
}

// Count 返回已注册连接数
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// Connections 返回所有已注册连接的快照
func (m *Manager) Connections() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Info, 0, len(m.conns))
	for id, e := range m.conns {
		out = append(out, Info{
			ID:           id,
			Subject:      e.conn.Subject(),
			DisplayName:  e.conn.DisplayName(),
			RegisteredAt: e.registeredAt,
			Active:       e.active && !e.terminated,
		})
	}
	return out
}

// Close 踢出所有连接并拒绝新的注册
func (m *Manager) Close(message string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	conns := make([]interfaces.Connection, 0, len(m.conns))
	for _, e := range m.conns {
		if !e.terminated {
			e.terminated = true
			conns = append(conns, e.conn)
		}
	}
	m.mu.Unlock()

	var err error
	for _, c := range conns {
		err = multierr.Append(err, c.Kick(message))
	}
	if len(conns) > 0 {
		logger.Info("关闭时踢出连接", "count", len(conns))
	}
	return err
}
