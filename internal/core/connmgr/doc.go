// Package connmgr 实现连接注册表
//
// Manager 跟踪宿主接受的所有连接，并实现 interfaces.Transport：
//
//   - Register / Unregister: 宿主在连接建立与关闭时调用
//   - MarkActive: 连接通过激活校验后登记为主体的在线连接
//   - IsLive: 连接仍已注册、未被终止且底层仍在线
//   - Terminate: 以消息踢出连接，之后 IsLive 返回 false
//   - IsOnline / Connection: 按主体查询在线连接
//
// 同一主体同时只允许一个已注册的连接。
//
// # 快速开始
//
//	mgr := connmgr.New()
//	if err := mgr.Register(conn); err != nil {
//	    // 重复登录
//	}
//	defer mgr.Unregister(conn)
//
//	if mgr.IsLive(conn) {
//	    mgr.MarkActive(conn)
//	}
package connmgr
