// Package storage 提供用户记录的持久化存储
//
// Storage 模块基于 BadgerDB 实现，分为三层：
//
//	┌─────────────────────────────────────────────┐
//	│  Repository  用户记录 + LRU 读缓存            │
//	└─────────────────────────────────────────────┘
//	                     │
//	┌─────────────────────────────────────────────┐
//	│  kv.Store    带前缀隔离的 KV 抽象（u/）       │
//	└─────────────────────────────────────────────┘
//	                     │
//	┌─────────────────────────────────────────────┐
//	│  engine/badger  BadgerDB 实现（磁盘/内存）    │
//	└─────────────────────────────────────────────┘
//
// 首次出现的主体在 Fetch 时获得一条默认记录（默认权限组）。
package storage
