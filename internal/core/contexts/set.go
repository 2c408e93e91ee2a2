package contexts

import (
	"slices"
	"strings"
)

// Set 上下文集合
//
// 同一个键可以有多个值。键和值都按小写存储。
type Set struct {
	values map[string][]string
}

// NewSet 创建空集合
func NewSet() *Set {
	return &Set{values: make(map[string][]string)}
}

// Add 添加上下文，空键或空值被忽略
func (s *Set) Add(key, value string) {
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.ToLower(strings.TrimSpace(value))
	if key == "" || value == "" {
		return
	}
	if slices.Contains(s.values[key], value) {
		return
	}
	s.values[key] = append(s.values[key], value)
}

// Contains 是否包含键值对
func (s *Set) Contains(key, value string) bool {
	return slices.Contains(s.values[strings.ToLower(key)], strings.ToLower(value))
}

// Values 返回键的所有值
func (s *Set) Values(key string) []string {
	return slices.Clone(s.values[strings.ToLower(key)])
}

// Len 返回键值对总数
func (s *Set) Len() int {
	n := 0
	for _, v := range s.values {
		n += len(v)
	}
	return n
}

// String 以 key=value 形式输出，按键排序
func (s *Set) String() string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range s.values[k] {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(v)
		}
	}
	return b.String()
}
