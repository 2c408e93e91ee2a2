// Package permsync 提供权限状态同步服务
//
// permsync 负责客户端连接的准入与权限视图同步：连接建立时加载主体的
// 权限状态并完成两段式准入，状态或上下文变化时通过按主体去抖的通知
// 路由把刷新请求合并后推送给在线客户端。
//
// # 核心概念
//
//   - Node: 服务节点，组装并管理所有内部组件的生命周期
//   - Admission: 两段式准入管道（预准入加载状态，激活时校验并触发上下文）
//   - Notify: 通知路由，按主体去抖合并刷新请求
//   - StateStore: 已加载主体的权限状态缓存，离线后延迟卸载
//
// # 快速开始
//
//	import "github.com/dep2p/go-permsync"
//
//	node, err := permsync.Start(ctx,
//	    permsync.WithListen("127.0.0.1:7480"),
//	    permsync.WithInMemoryStorage(),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Close()
//
//	// 修改权限后，在线客户端会在去抖窗口结束时收到一次刷新
//	_ = node.StateStore().SetPermission(subject, "chat.color", true)
//
// # 客户端协议
//
// 客户端通过 WebSocket 连接 /connect?subject=<uuid>&name=<名称>&locale=<语言>，
// 服务端推送 JSON 消息：admitted（准入完成）、refresh（权限视图已变化）、
// kick（被踢出，附带本地化原因）。
//
// # 配置
//
// 配置按 默认值 → JSON 文件 → PERMSYNC_ 前缀环境变量 的顺序叠加，
// 参见 config 包。
package permsync
