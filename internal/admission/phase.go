package admission

import (
	"sync"

	"github.com/dep2p/go-permsync/pkg/types"
)

// Phase 主体在准入流水线中的阶段
type Phase int

const (
	// PhaseConnecting 预登录进行中
	PhaseConnecting Phase = iota
	// PhasePreAdmitted 状态已加载
	PhasePreAdmitted
	// PhaseActive 已激活
	PhaseActive
	// PhaseDenied 已拒绝
	PhaseDenied
)

// String 返回阶段名
func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhasePreAdmitted:
		return "pre_admitted"
	case PhaseActive:
		return "active"
	case PhaseDenied:
		return "denied"
	default:
		return "unknown"
	}
}

const shardCount = 32

// phaseTable 按主体分片的阶段表
//
// 不同主体落在不同分片时互不竞争；锁只保护 map 访问，不跨 I/O 持有。
type phaseTable struct {
	shards [shardCount]phaseShard
}

type phaseShard struct {
	mu     sync.Mutex
	phases map[types.SubjectID]Phase
}

func newPhaseTable() *phaseTable {
	t := &phaseTable{}
	for i := range t.shards {
		t.shards[i].phases = make(map[types.SubjectID]Phase)
	}
	return t
}

func (t *phaseTable) shard(subject types.SubjectID) *phaseShard {
	return &t.shards[subject[len(subject)-1]%shardCount]
}

func (t *phaseTable) set(subject types.SubjectID, phase Phase) {
	s := t.shard(subject)
	s.mu.Lock()
	s.phases[subject] = phase
	s.mu.Unlock()
}

func (t *phaseTable) get(subject types.SubjectID) (Phase, bool) {
	s := t.shard(subject)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.phases[subject]
	return p, ok
}

func (t *phaseTable) remove(subject types.SubjectID) {
	s := t.shard(subject)
	s.mu.Lock()
	delete(s.phases, subject)
	s.mu.Unlock()
}

func (t *phaseTable) len() int {
	n := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		n += len(s.phases)
		s.mu.Unlock()
	}
	return n
}

// UniqueConnections 本进程生命周期内完成过预登录的主体
//
// 只增不减。
type UniqueConnections struct {
	mu       sync.RWMutex
	subjects map[types.SubjectID]struct{}
}

// NewUniqueConnections 创建空集合
func NewUniqueConnections() *UniqueConnections {
	return &UniqueConnections{subjects: make(map[types.SubjectID]struct{})}
}

// Add 记录主体
func (u *UniqueConnections) Add(subject types.SubjectID) {
	u.mu.Lock()
	u.subjects[subject] = struct{}{}
	u.mu.Unlock()
}

// Contains 是否记录过主体
func (u *UniqueConnections) Contains(subject types.SubjectID) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.subjects[subject]
	return ok
}

// Len 返回记录数
func (u *UniqueConnections) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.subjects)
}
