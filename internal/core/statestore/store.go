package statestore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/singleflight"

	"github.com/dep2p/go-permsync/internal/core/storage"
	"github.com/dep2p/go-permsync/pkg/interfaces"
	"github.com/dep2p/go-permsync/pkg/lib/log"
	"github.com/dep2p/go-permsync/pkg/types"
)

var logger = log.Logger("core/statestore")

// DefaultUnloadDelay 默认卸载延迟
const DefaultUnloadDelay = 5 * time.Second

var (
	// ErrNotLoaded 主体状态未加载
	ErrNotLoaded = errors.New("statestore: state not loaded")

	// ErrClosed 存储已关闭
	ErrClosed = errors.New("statestore: closed")
)

// Loader 用户记录来源
type Loader interface {
	Fetch(ctx context.Context, subject types.SubjectID, name string) (*storage.UserRecord, error)
	Update(subject types.SubjectID, fn func(rec *storage.UserRecord)) (*storage.UserRecord, error)
}

var _ Loader = (*storage.Repository)(nil)

// Store 会话状态存储
type Store struct {
	loader      Loader
	transport   interfaces.Transport
	emitter     interfaces.Emitter
	clk         clock.Clock
	unloadDelay time.Duration

	group singleflight.Group

	mu      sync.RWMutex
	states  map[types.SubjectID]*UserState
	pending map[types.SubjectID]*clock.Timer
	closed  bool
}

var _ interfaces.StateStore = (*Store)(nil)

// Option 选项
type Option func(*Store)

// WithClock 设置时钟
func WithClock(clk clock.Clock) Option {
	return func(s *Store) {
		if clk != nil {
			s.clk = clk
		}
	}
}

// WithUnloadDelay 设置卸载延迟，0 表示立即卸载
func WithUnloadDelay(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.unloadDelay = d
		}
	}
}

// WithTransport 设置传输层，卸载前检查主体是否重新上线
func WithTransport(t interfaces.Transport) Option {
	return func(s *Store) {
		s.transport = t
	}
}

// New 创建状态存储
//
// bus 为 nil 时不发出事件。
func New(loader Loader, bus interfaces.EventBus, opts ...Option) (*Store, error) {
	s := &Store{
		loader:      loader,
		clk:         clock.New(),
		unloadDelay: DefaultUnloadDelay,
		states:      make(map[types.SubjectID]*UserState),
		pending:     make(map[types.SubjectID]*clock.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}

	if bus != nil {
		em, err := bus.Emitter(new(types.EvtStateRecalculated))
		if err != nil {
			return nil, fmt.Errorf("statestore: create emitter: %w", err)
		}
		s.emitter = em
	}
	return s, nil
}

// Load 加载主体状态
//
// 同一主体的并发调用只访问一次存储。加载会取消尚未执行的卸载。
func (s *Store) Load(ctx context.Context, subject types.SubjectID, name string) (interfaces.SessionState, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.cancelUnloadLocked(subject)
	s.mu.Unlock()

	v, err, shared := s.group.Do(subject.String(), func() (interface{}, error) {
		rec, err := s.loader.Fetch(ctx, subject, name)
		if err != nil {
			return nil, err
		}
		st := &UserState{record: rec, loadedAt: s.clk.Now()}

		s.mu.Lock()
		s.states[subject] = st
		s.mu.Unlock()

		logger.Debug("会话状态已加载", "subject", subject.ShortString(), "group", rec.PrimaryGroup)
		s.emit(subject)
		return st, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load state for %s: %w", subject.ShortString(), err)
	}
	if shared {
		logger.Debug("合并并发加载", "subject", subject.ShortString())
	}
	return v.(*UserState), nil
}

// Lookup 查询已加载的状态
func (s *Store) Lookup(subject types.SubjectID) (interfaces.SessionState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[subject]
	if !ok {
		return nil, false
	}
	return st, true
}

// State 返回具体类型的状态
func (s *Store) State(subject types.SubjectID) (*UserState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[subject]
	return st, ok
}

// Loaded 返回已加载的主体数
func (s *Store) Loaded() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// ScheduleUnload 在卸载延迟后销毁主体状态
//
// 到期时主体仍在线（已重新连接）则保留状态。
func (s *Store) ScheduleUnload(subject types.SubjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.cancelUnloadLocked(subject)

	if s.unloadDelay == 0 {
		s.unloadLocked(subject)
		return
	}

	var timer *clock.Timer
	timer = s.clk.AfterFunc(s.unloadDelay, func() {
		if s.transport != nil && s.transport.IsOnline(subject) {
			s.mu.Lock()
			if s.pending[subject] == timer {
				delete(s.pending, subject)
			}
			s.mu.Unlock()
			logger.Debug("主体已重新上线，保留状态", "subject", subject.ShortString())
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		// 期间被重新加载或重新安排
		if s.pending[subject] != timer {
			return
		}
		delete(s.pending, subject)
		s.unloadLocked(subject)
	})
	s.pending[subject] = timer
}

// Unload 立即卸载主体状态
func (s *Store) Unload(subject types.SubjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelUnloadLocked(subject)
	s.unloadLocked(subject)
}

// SetPermission 设置权限节点并刷新已加载的状态
func (s *Store) SetPermission(subject types.SubjectID, node string, value bool) error {
	return s.update(subject, func(rec *storage.UserRecord) {
		if rec.Permissions == nil {
			rec.Permissions = make(map[string]bool)
		}
		rec.Permissions[node] = value
	})
}

// UnsetPermission 移除权限节点
func (s *Store) UnsetPermission(subject types.SubjectID, node string) error {
	return s.update(subject, func(rec *storage.UserRecord) {
		delete(rec.Permissions, node)
	})
}

// SetPrimaryGroup 设置主权限组
func (s *Store) SetPrimaryGroup(subject types.SubjectID, group string) error {
	return s.update(subject, func(rec *storage.UserRecord) {
		rec.PrimaryGroup = group
	})
}

func (s *Store) update(subject types.SubjectID, fn func(rec *storage.UserRecord)) error {
	rec, err := s.loader.Update(subject, fn)
	if err != nil {
		return fmt.Errorf("update %s: %w", subject.ShortString(), err)
	}

	s.mu.Lock()
	_, loaded := s.states[subject]
	if loaded {
		s.states[subject] = &UserState{record: rec, loadedAt: s.clk.Now()}
	}
	s.mu.Unlock()

	if loaded {
		s.emit(subject)
	}
	return nil
}

// Close 取消所有待执行的卸载并关闭发射器
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for subject, t := range s.pending {
		t.Stop()
		delete(s.pending, subject)
	}
	s.mu.Unlock()

	if s.emitter != nil {
		return s.emitter.Close()
	}
	return nil
}

func (s *Store) cancelUnloadLocked(subject types.SubjectID) {
	if t, ok := s.pending[subject]; ok {
		t.Stop()
		delete(s.pending, subject)
	}
}

func (s *Store) unloadLocked(subject types.SubjectID) {
	if _, ok := s.states[subject]; !ok {
		return
	}
	delete(s.states, subject)
	logger.Debug("会话状态已卸载", "subject", subject.ShortString())
}

func (s *Store) emit(subject types.SubjectID) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.Emit(types.EvtStateRecalculated{Subject: subject}); err != nil {
		logger.Debug("发射状态重算事件失败", "subject", subject.ShortString(), "error", err)
	}
}
