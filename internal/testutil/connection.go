package testutil

import (
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-permsync/pkg/interfaces"
	"github.com/dep2p/go-permsync/pkg/types"
)

// FakeConnection 内存连接
//
// Kick 记录消息并把连接置为离线。
type FakeConnection struct {
	id      types.ConnID
	subject types.SubjectID
	name    string
	locale  string

	online atomic.Bool

	mu        sync.Mutex
	kicks     []string
	kickErr   error
	refreshes int
}

var _ interfaces.Connection = (*FakeConnection)(nil)

// NewFakeConnection 创建在线的假连接
func NewFakeConnection(subject types.SubjectID, name string) *FakeConnection {
	c := &FakeConnection{
		id:      types.NewConnID(),
		subject: subject,
		name:    name,
	}
	c.online.Store(true)
	return c
}

// WithLocale 设置语言标签
func (c *FakeConnection) WithLocale(locale string) *FakeConnection {
	c.locale = locale
	return c
}

// ID 实现 Connection
func (c *FakeConnection) ID() types.ConnID { return c.id }

// Subject 实现 Connection
func (c *FakeConnection) Subject() types.SubjectID { return c.subject }

// DisplayName 实现 Connection
func (c *FakeConnection) DisplayName() string { return c.name }

// Locale 实现 Connection
func (c *FakeConnection) Locale() string { return c.locale }

// Online 实现 Connection
func (c *FakeConnection) Online() bool { return c.online.Load() }

// SetOnline 设置在线状态
func (c *FakeConnection) SetOnline(online bool) { c.online.Store(online) }

// FailKick 让后续 Kick 返回 err
func (c *FakeConnection) FailKick(err error) {
	c.mu.Lock()
	c.kickErr = err
	c.mu.Unlock()
}

// Kick 实现 Connection
func (c *FakeConnection) Kick(message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kicks = append(c.kicks, message)
	c.online.Store(false)
	return c.kickErr
}

// Kicks 返回收到的踢出消息
func (c *FakeConnection) Kicks() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.kicks...)
}

// MarkRefreshed 记录一次刷新
func (c *FakeConnection) MarkRefreshed() {
	c.mu.Lock()
	c.refreshes++
	c.mu.Unlock()
}

// Refreshes 返回刷新次数
func (c *FakeConnection) Refreshes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshes
}
