package statestore

import (
	"time"

	"github.com/dep2p/go-permsync/internal/core/storage"
	"github.com/dep2p/go-permsync/pkg/interfaces"
	"github.com/dep2p/go-permsync/pkg/types"
)

// UserState 已加载的会话状态
//
// 不可变快照：权限变更时整体替换。
type UserState struct {
	record   *storage.UserRecord
	loadedAt time.Time
}

var _ interfaces.SessionState = (*UserState)(nil)

// Subject 实现 SessionState
func (s *UserState) Subject() types.SubjectID {
	return s.record.Subject
}

// Name 显示名
func (s *UserState) Name() string {
	return s.record.Name
}

// PrimaryGroup 主权限组
func (s *UserState) PrimaryGroup() string {
	return s.record.PrimaryGroup
}

// LoadedAt 加载时间
func (s *UserState) LoadedAt() time.Time {
	return s.loadedAt
}

// Permission 查询直接设置的权限节点
//
// set 为 false 表示该节点未设置，由外部授权引擎决定。
func (s *UserState) Permission(node string) (value, set bool) {
	value, set = s.record.Permissions[node]
	return value, set
}

// Record 返回记录副本
func (s *UserState) Record() *storage.UserRecord {
	return s.record.Clone()
}
