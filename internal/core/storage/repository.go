package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dep2p/go-permsync/internal/core/storage/engine"
	"github.com/dep2p/go-permsync/internal/core/storage/kv"
	"github.com/dep2p/go-permsync/pkg/types"
)

// userPrefix 用户记录键前缀
var userPrefix = []byte("u/")

// Repository 用户记录仓库
//
// 读取先查 LRU 缓存，写入同时更新缓存。返回给调用方的记录都是副本。
type Repository struct {
	store        *kv.Store
	cache        *lru.Cache[types.SubjectID, *UserRecord]
	defaultGroup string
	clk          clock.Clock

	// mu 串行化读-改-写
	mu sync.Mutex
}

// NewRepository 创建用户记录仓库
func NewRepository(eng engine.Engine, cfg Config, clk clock.Clock) (*Repository, error) {
	if clk == nil {
		clk = clock.New()
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultConfig().CacheSize
	}
	cache, err := lru.New[types.SubjectID, *UserRecord](size)
	if err != nil {
		return nil, fmt.Errorf("storage: create cache: %w", err)
	}
	group := cfg.DefaultGroup
	if group == "" {
		group = DefaultConfig().DefaultGroup
	}
	return &Repository{
		store:        kv.New(eng, userPrefix),
		cache:        cache,
		defaultGroup: group,
		clk:          clk,
	}, nil
}

// Fetch 加载主体的记录，不存在时创建默认记录
//
// 每次调用都会更新显示名与 LastSeen。
func (r *Repository) Fetch(ctx context.Context, subject types.SubjectID, name string) (*UserRecord, error) {
	if subject.IsEmpty() {
		return nil, ErrInvalidSubject
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.getLocked(subject)
	switch {
	case err == nil:
	case engine.IsNotFound(err):
		rec = &UserRecord{
			Subject:      subject,
			PrimaryGroup: r.defaultGroup,
			FirstSeen:    r.clk.Now(),
		}
		logger.Info("创建默认用户记录", "subject", subject.ShortString(), "group", r.defaultGroup)
	default:
		return nil, err
	}

	if name != "" {
		rec.Name = name
	}
	rec.LastSeen = r.clk.Now()

	if err := r.putLocked(rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Get 读取记录，不存在时返回 ErrNotFound
func (r *Repository) Get(subject types.SubjectID) (*UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.getLocked(subject)
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Save 保存记录
func (r *Repository) Save(rec *UserRecord) error {
	if rec == nil || rec.Subject.IsEmpty() {
		return ErrInvalidSubject
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.putLocked(rec.Clone())
}

// Update 对已有记录执行 fn 并保存
func (r *Repository) Update(subject types.SubjectID, fn func(rec *UserRecord)) (*UserRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.getLocked(subject)
	if err != nil {
		return nil, err
	}
	rec = rec.Clone()
	fn(rec)
	if err := r.putLocked(rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Delete 删除记录
func (r *Repository) Delete(subject types.SubjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache.Remove(subject)
	return r.store.Delete(subjectKey(subject))
}

// Count 返回记录总数
func (r *Repository) Count() (int, error) {
	n := 0
	err := r.store.ForEach(func(_, _ []byte) error {
		n++
		return nil
	})
	return n, err
}

func (r *Repository) getLocked(subject types.SubjectID) (*UserRecord, error) {
	if rec, ok := r.cache.Get(subject); ok {
		return rec.Clone(), nil
	}

	var rec UserRecord
	if err := r.store.GetJSON(subjectKey(subject), &rec); err != nil {
		return nil, err
	}
	r.cache.Add(subject, rec.Clone())
	return &rec, nil
}

func (r *Repository) putLocked(rec *UserRecord) error {
	if err := r.store.PutJSON(subjectKey(rec.Subject), rec); err != nil {
		r.cache.Remove(rec.Subject)
		return err
	}
	r.cache.Add(rec.Subject, rec.Clone())
	return nil
}

func subjectKey(subject types.SubjectID) []byte {
	return []byte(subject.String())
}
