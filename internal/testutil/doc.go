// Package testutil 提供各包测试共用的假实现
package testutil
