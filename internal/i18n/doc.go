// Package i18n 渲染面向客户端的本地化消息
//
// 消息目录以 YAML 形式嵌入，路径为 locales/<locale>/<namespace>.yaml：
//
//	locale: en-US
//	namespace: core
//	messages:
//	  loading.database_error: "..."
//
// Catalog 实现 interfaces.Localizer。语言标签通过 golang.org/x/text/language
// 匹配到最接近的已支持语言，缺失的键回退到 BaseLocale，仍缺失时返回键本身。
package i18n
