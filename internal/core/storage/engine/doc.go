// Package engine 定义存储引擎接口
//
// # 实现
//
//   - badger: BadgerDB 实现（默认，支持磁盘与内存模式）
package engine
