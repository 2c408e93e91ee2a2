package testutil

import (
	"context"
	"sync"

	"github.com/dep2p/go-permsync/pkg/interfaces"
	"github.com/dep2p/go-permsync/pkg/types"
)

// ============================================================================
//                              状态存储
// ============================================================================

// FakeState 假会话状态
type FakeState struct {
	ID types.SubjectID
}

// Subject 实现 SessionState
func (s *FakeState) Subject() types.SubjectID { return s.ID }

// FakeStateStore 内存状态存储
//
// LoadFunc 非空时代替默认加载逻辑，返回的状态会被登记。
type FakeStateStore struct {
	LoadFunc func(ctx context.Context, subject types.SubjectID, name string) (interfaces.SessionState, error)

	mu      sync.Mutex
	states  map[types.SubjectID]interfaces.SessionState
	loads   int
	unloads []types.SubjectID
}

var _ interfaces.StateStore = (*FakeStateStore)(nil)

// NewFakeStateStore 创建假状态存储
func NewFakeStateStore() *FakeStateStore {
	return &FakeStateStore{states: make(map[types.SubjectID]interfaces.SessionState)}
}

// Load 实现 StateStore
func (s *FakeStateStore) Load(ctx context.Context, subject types.SubjectID, name string) (interfaces.SessionState, error) {
	s.mu.Lock()
	s.loads++
	fn := s.LoadFunc
	s.mu.Unlock()

	var st interfaces.SessionState = &FakeState{ID: subject}
	if fn != nil {
		var err error
		if st, err = fn(ctx, subject, name); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.states[subject] = st
	s.mu.Unlock()
	return st, nil
}

// Lookup 实现 StateStore
func (s *FakeStateStore) Lookup(subject types.SubjectID) (interfaces.SessionState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[subject]
	return st, ok
}

// ScheduleUnload 实现 StateStore，记录请求并立即移除状态
func (s *FakeStateStore) ScheduleUnload(subject types.SubjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unloads = append(s.unloads, subject)
	delete(s.states, subject)
}

// Evict 模拟外部驱逐
func (s *FakeStateStore) Evict(subject types.SubjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, subject)
}

// Loads 返回 Load 调用次数
func (s *FakeStateStore) Loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

// Unloads 返回卸载请求
func (s *FakeStateStore) Unloads() []types.SubjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.SubjectID(nil), s.unloads...)
}

// ============================================================================
//                              上下文
// ============================================================================

// RecordingSignaler 记录上下文信号
type RecordingSignaler struct {
	mu      sync.Mutex
	updates []types.SubjectID
	quits   []types.SubjectID

	// OnQuitHook 非空时在 OnQuit 中调用
	OnQuitHook func(subject types.SubjectID)
}

var _ interfaces.ContextSignaler = (*RecordingSignaler)(nil)

// SignalContextUpdate 实现 ContextSignaler
func (r *RecordingSignaler) SignalContextUpdate(conn interfaces.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, conn.Subject())
}

// OnQuit 实现 ContextSignaler
func (r *RecordingSignaler) OnQuit(subject types.SubjectID) {
	r.mu.Lock()
	r.quits = append(r.quits, subject)
	hook := r.OnQuitHook
	r.mu.Unlock()
	if hook != nil {
		hook(subject)
	}
}

// Updates 返回 SignalContextUpdate 的主体
func (r *RecordingSignaler) Updates() []types.SubjectID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.SubjectID(nil), r.updates...)
}

// Quits 返回 OnQuit 的主体
func (r *RecordingSignaler) Quits() []types.SubjectID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.SubjectID(nil), r.quits...)
}

// ============================================================================
//                              本地化
// ============================================================================

// KeyLocalizer 把键原样作为消息返回
type KeyLocalizer struct{}

// Render 实现 Localizer
func (KeyLocalizer) Render(key, _ string) string { return key }
