package i18n

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbedded(t *testing.T) {
	c, err := LoadEmbedded()
	require.NoError(t, err)
	assert.Equal(t, []string{"en-US", "zh-CN"}, c.Locales())
}

// TestRender_LocaleMatching 测试语言匹配与回退
func TestRender_LocaleMatching(t *testing.T) {
	c, err := LoadEmbedded()
	require.NoError(t, err)

	en := c.Render(KeyStateError, "en-US")
	zh := c.Render(KeyStateError, "zh-CN")
	assert.Contains(t, en, "pre-admission")
	assert.Contains(t, zh, "预登录")

	assert.Equal(t, zh, c.Render(KeyStateError, "zh_CN"))
	assert.Equal(t, zh, c.Render(KeyStateError, "zh"))
	assert.Equal(t, en, c.Render(KeyStateError, "en-GB"))
	assert.Equal(t, en, c.Render(KeyStateError, ""))
	assert.Equal(t, en, c.Render(KeyStateError, "not a locale!"))
	assert.Equal(t, en, c.Render(KeyStateError, "fr-FR"))
}

// TestRender_MissingKey 测试缺失键回退
func TestRender_MissingKey(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/en-US/core.yaml": {Data: []byte("locale: en-US\nnamespace: core\nmessages:\n  only.base: \"base text\"\n  greet: \"hello %s\"\n")},
		"locales/zh-CN/core.yaml": {Data: []byte("locale: zh-CN\nnamespace: core\nmessages:\n  greet: \"你好 %s\"\n")},
	}
	c, err := LoadFromFS(fsys)
	require.NoError(t, err)

	assert.Equal(t, "base text", c.Render("only.base", "zh-CN"))
	assert.Equal(t, "unknown.key", c.Render("unknown.key", "zh-CN"))
	assert.Equal(t, "你好 alice", c.Renderf("greet", "zh-CN", "alice"))
	assert.Equal(t, "hello bob", c.Renderf("greet", "en-US", "bob"))
}

// TestLoadFromFS_Invalid 测试无效目录
func TestLoadFromFS_Invalid(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"empty", fstest.MapFS{}},
		{"no base locale", fstest.MapFS{
			"locales/zh-CN/core.yaml": {Data: []byte("locale: zh-CN\nnamespace: core\nmessages:\n  a: \"b\"\n")},
		}},
		{"locale mismatch", fstest.MapFS{
			"locales/en-US/core.yaml": {Data: []byte("locale: zh-CN\nnamespace: core\nmessages:\n  a: \"b\"\n")},
		}},
		{"namespace mismatch", fstest.MapFS{
			"locales/en-US/core.yaml": {Data: []byte("locale: en-US\nnamespace: other\nmessages:\n  a: \"b\"\n")},
		}},
		{"no messages", fstest.MapFS{
			"locales/en-US/core.yaml": {Data: []byte("locale: en-US\nnamespace: core\n")},
		}},
		{"bad yaml", fstest.MapFS{
			"locales/en-US/core.yaml": {Data: []byte("locale: [\n")},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFS(tt.fsys)
			assert.Error(t, err)
		})
	}
}
