// Package kv 提供带前缀隔离的 KV 存储抽象层
//
// KVStore 在底层存储引擎之上提供命名空间隔离，
// 每个组件可以使用不同的前缀来隔离数据。
//
// # 键空间设计
//
//   - u/ - 用户记录（storage.Repository）
//
// # 使用示例
//
//	users := kv.New(eng, []byte("u/"))
//	users.PutJSON([]byte(subject.String()), record) // 实际键: u/<subject>
package kv

import (
	"encoding/json"
	"fmt"

	"github.com/dep2p/go-permsync/internal/core/storage/engine"
)

// Store 带前缀隔离的 KV 存储
type Store struct {
	engine engine.Engine
	prefix []byte
}

// New 创建新的 KVStore
func New(eng engine.Engine, prefix []byte) *Store {
	return &Store{
		engine: eng,
		prefix: prefix,
	}
}

// Prefix 返回键前缀
func (s *Store) Prefix() []byte {
	return s.prefix
}

// prefixKey 为键添加前缀
func (s *Store) prefixKey(key []byte) []byte {
	if len(s.prefix) == 0 {
		return key
	}
	prefixed := make([]byte, len(s.prefix)+len(key))
	copy(prefixed, s.prefix)
	copy(prefixed[len(s.prefix):], key)
	return prefixed
}

// Get 获取指定键的值
func (s *Store) Get(key []byte) ([]byte, error) {
	return s.engine.Get(s.prefixKey(key))
}

// Put 设置键值对
func (s *Store) Put(key, value []byte) error {
	return s.engine.Put(s.prefixKey(key), value)
}

// Delete 删除指定键
func (s *Store) Delete(key []byte) error {
	return s.engine.Delete(s.prefixKey(key))
}

// Has 检查键是否存在
func (s *Store) Has(key []byte) (bool, error) {
	return s.engine.Has(s.prefixKey(key))
}

// GetJSON 获取并反序列化 JSON 值
func (s *Store) GetJSON(key []byte, v interface{}) error {
	data, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("storage: decode %s: %w", key, err)
	}
	return nil
}

// PutJSON 序列化并存储 JSON 值
func (s *Store) PutJSON(key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}
	return s.Put(key, data)
}

// ForEach 遍历前缀下的所有键值，传给 fn 的键已去掉前缀
func (s *Store) ForEach(fn func(key, value []byte) error) error {
	return s.engine.ForEach(s.prefix, func(key, value []byte) error {
		return fn(key[len(s.prefix):], value)
	})
}
