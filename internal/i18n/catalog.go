package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"

	"github.com/dep2p/go-permsync/pkg/interfaces"
	"github.com/dep2p/go-permsync/pkg/lib/log"
)

var logger = log.Logger("i18n")

// BaseLocale 基础语言
const BaseLocale = "en-US"

// 消息键
const (
	KeyDatabaseError = "loading.database_error"
	KeyStateError    = "loading.state_error"
	KeyShutdown      = "server.shutdown"
	KeyDuplicate     = "connection.duplicate"
)

//go:embed locales/*/*.yaml
var embeddedFS embed.FS

type catalogFile struct {
	Locale    string            `yaml:"locale"`
	Namespace string            `yaml:"namespace"`
	Messages  map[string]string `yaml:"messages"`
}

// Catalog 本地化消息目录
type Catalog struct {
	builder  *catalog.Builder
	matcher  language.Matcher
	tags     []language.Tag
	base     language.Tag
	messages map[language.Tag]map[string]string
}

var _ interfaces.Localizer = (*Catalog)(nil)

// LoadEmbedded 加载内置目录
func LoadEmbedded() (*Catalog, error) {
	return LoadFromFS(embeddedFS)
}

// LoadFromFS 从文件系统加载目录
func LoadFromFS(fsys fs.FS) (*Catalog, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	base := language.MustParse(BaseLocale)
	c := &Catalog{
		builder:  catalog.NewBuilder(catalog.Fallback(base)),
		base:     base,
		messages: make(map[language.Tag]map[string]string),
	}

	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		if err := c.addFile(p, data); err != nil {
			return nil, err
		}
	}

	if _, ok := c.messages[base]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}

	// 基础语言排在首位，作为匹配失败时的结果
	c.tags = append(c.tags, base)
	for tag := range c.messages {
		if tag != base {
			c.tags = append(c.tags, tag)
		}
	}
	sort.Slice(c.tags[1:], func(i, j int) bool {
		return c.tags[i+1].String() < c.tags[j+1].String()
	})
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

func (c *Catalog) addFile(p string, data []byte) error {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse catalog %s: %w", p, err)
	}

	localeFromPath := path.Base(path.Dir(p))
	namespaceFromPath := strings.TrimSuffix(path.Base(p), path.Ext(p))
	if file.Locale != localeFromPath {
		return fmt.Errorf("catalog %s: locale %q must match path locale %q", p, file.Locale, localeFromPath)
	}
	if file.Namespace != namespaceFromPath {
		return fmt.Errorf("catalog %s: namespace %q must match filename %q", p, file.Namespace, namespaceFromPath)
	}
	if len(file.Messages) == 0 {
		return fmt.Errorf("catalog %s: messages map is required", p)
	}

	tag, err := language.Parse(file.Locale)
	if err != nil {
		return fmt.Errorf("catalog %s: parse locale tag: %w", p, err)
	}

	msgs, ok := c.messages[tag]
	if !ok {
		msgs = make(map[string]string)
		c.messages[tag] = msgs
	}
	for key, value := range file.Messages {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("catalog %s: message key cannot be blank", p)
		}
		if _, exists := msgs[key]; exists {
			return fmt.Errorf("catalog %s: duplicate key %q in locale %q", p, key, file.Locale)
		}
		msgs[key] = value
		if err := c.builder.SetString(tag, key, value); err != nil {
			return fmt.Errorf("catalog %s: register %q: %w", p, key, err)
		}
	}
	return nil
}

// Locales 返回已支持的语言，基础语言在首位
func (c *Catalog) Locales() []string {
	out := make([]string, len(c.tags))
	for i, tag := range c.tags {
		out[i] = tag.String()
	}
	return out
}

// Match 把客户端语言标签匹配到已支持的语言
//
// 接受 "zh_CN" 这类下划线写法。空或无法解析时返回基础语言。
func (c *Catalog) Match(locale string) language.Tag {
	locale = strings.ReplaceAll(strings.TrimSpace(locale), "_", "-")
	if locale == "" {
		return c.base
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return c.base
	}
	_, idx, conf := c.matcher.Match(tag)
	if conf == language.No {
		return c.base
	}
	return c.tags[idx]
}

// Render 实现 interfaces.Localizer
func (c *Catalog) Render(key, locale string) string {
	return c.Renderf(key, locale)
}

// Renderf 渲染带参数的消息
func (c *Catalog) Renderf(key, locale string, args ...any) string {
	tag := c.Match(locale)
	if _, ok := c.messages[tag][key]; !ok {
		if _, ok := c.messages[c.base][key]; !ok {
			logger.Debug("缺少消息键", "key", key, "locale", locale)
			return key
		}
		tag = c.base
	}
	p := message.NewPrinter(tag, message.Catalog(c.builder))
	return p.Sprintf(key, args...)
}
