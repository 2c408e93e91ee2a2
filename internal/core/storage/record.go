package storage

import (
	"maps"
	"slices"
	"time"

	"github.com/dep2p/go-permsync/pkg/types"
)

// UserRecord 持久化的用户记录
type UserRecord struct {
	// Subject 主体标识
	Subject types.SubjectID `json:"subject"`

	// Name 最近一次登录使用的显示名
	Name string `json:"name"`

	// PrimaryGroup 主权限组
	PrimaryGroup string `json:"primary_group"`

	// Permissions 直接授予或拒绝的权限节点
	Permissions map[string]bool `json:"permissions,omitempty"`

	// FirstSeen 首次出现时间
	FirstSeen time.Time `json:"first_seen"`

	// LastSeen 最近一次加载时间
	LastSeen time.Time `json:"last_seen"`
}

// Clone 深拷贝
func (r *UserRecord) Clone() *UserRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Permissions = maps.Clone(r.Permissions)
	return &c
}

// PermissionNodes 返回排序后的权限节点
func (r *UserRecord) PermissionNodes() []string {
	nodes := make([]string, 0, len(r.Permissions))
	for node := range r.Permissions {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	return nodes
}
