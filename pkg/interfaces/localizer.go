package interfaces

// Localizer 本地化消息渲染
type Localizer interface {
	// Render 按 locale 渲染消息键，缺失时回退到基础语言，再缺失时返回键本身
	Render(key string, locale string) string
}
