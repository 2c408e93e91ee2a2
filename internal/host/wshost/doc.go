// Package wshost 基于 WebSocket 的参考宿主
//
// 客户端通过 /connect?subject=<uuid>&name=<显示名>&locale=<语言> 建立连接。
// 每个连接依次经过：
//
//	connmgr.Register → admission.PreAdmit → admission.Activate
//	→ 读循环 → admission.Disconnect → connmgr.Unregister
//
// 服务端发往客户端的消息为 JSON 文本帧：
//
//	{"type":"admitted"}              激活完成
//	{"type":"refresh"}               客户端视图需要刷新
//	{"type":"kick","reason":"..."}   连接被踢出，随后发送关闭帧
//
// 同一个 HTTP 服务在配置的路径上暴露 Prometheus 指标。
package wshost
