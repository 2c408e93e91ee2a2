package contexts

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-permsync/internal/core/eventbus"
	"github.com/dep2p/go-permsync/internal/testutil"
	"github.com/dep2p/go-permsync/pkg/interfaces"
	"github.com/dep2p/go-permsync/pkg/types"
)

func TestSet(t *testing.T) {
	s := NewSet()
	s.Add("World", "Nether")
	s.Add("world", "nether")
	s.Add("world", "end")
	s.Add("", "x")
	s.Add("server", " ")

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("WORLD", "NETHER"))
	assert.Equal(t, []string{"nether", "end"}, s.Values("world"))
	assert.Equal(t, "world=nether,world=end", s.String())
}

// TestManager_CachesPerSubject 测试按主体缓存
func TestManager_CachesPerSubject(t *testing.T) {
	m, err := NewManager(nil, WithCacheTTL(time.Minute))
	require.NoError(t, err)

	var calls atomic.Int32
	m.Register(CalculatorFunc(func(conn interfaces.Connection, acc *Set) {
		calls.Add(1)
		acc.Add("server", "lobby")
	}))
	m.Register(LocaleCalculator)

	conn := testutil.NewFakeConnection(types.NewSubjectID(), "alice").WithLocale("zh-CN")
	set := m.Get(conn)
	assert.True(t, set.Contains("server", "lobby"))
	assert.True(t, set.Contains(KeyLocale, "zh-cn"))

	m.Get(conn)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, m.Cached(conn.Subject()))

	other := testutil.NewFakeConnection(types.NewSubjectID(), "bob")
	m.Get(other)
	assert.Equal(t, int32(2), calls.Load())
}

// TestManager_SignalInvalidatesAndEmits 测试上下文变更信号
func TestManager_SignalInvalidatesAndEmits(t *testing.T) {
	bus := eventbus.NewBus()
	sub, err := bus.Subscribe(new(types.EvtContextChanged))
	require.NoError(t, err)
	defer sub.Close()

	m, err := NewManager(bus, WithCacheTTL(time.Minute))
	require.NoError(t, err)
	defer m.Close()

	conn := testutil.NewFakeConnection(types.NewSubjectID(), "carol")
	m.Get(conn)
	require.True(t, m.Cached(conn.Subject()))

	m.SignalContextUpdate(conn)
	assert.False(t, m.Cached(conn.Subject()))

	select {
	case evt := <-sub.Out():
		assert.Same(t, conn, evt.(types.EvtContextChanged).Source)
	case <-time.After(time.Second):
		t.Fatal("未收到上下文变更事件")
	}
}

// TestManager_OnQuitDropsCache 测试主体离开后清理缓存
func TestManager_OnQuitDropsCache(t *testing.T) {
	m, err := NewManager(nil, WithCacheTTL(time.Minute))
	require.NoError(t, err)

	conn := testutil.NewFakeConnection(types.NewSubjectID(), "dave")
	m.Get(conn)
	m.OnQuit(conn.Subject())
	assert.False(t, m.Cached(conn.Subject()))
}

// TestManager_CalculatorPanicContained 测试计算器 panic 不影响其他计算器
func TestManager_CalculatorPanicContained(t *testing.T) {
	m, err := NewManager(nil)
	require.NoError(t, err)

	m.Register(CalculatorFunc(func(interfaces.Connection, *Set) { panic("boom") }))
	m.Register(CalculatorFunc(func(_ interfaces.Connection, acc *Set) { acc.Add("world", "overworld") }))

	set := m.Get(testutil.NewFakeConnection(types.NewSubjectID(), "erin"))
	assert.True(t, set.Contains("world", "overworld"))
}

// TestManager_CacheExpires 测试缓存过期后重新计算
func TestManager_CacheExpires(t *testing.T) {
	m, err := NewManager(nil, WithCacheTTL(10*time.Millisecond))
	require.NoError(t, err)

	var calls atomic.Int32
	m.Register(CalculatorFunc(func(interfaces.Connection, *Set) { calls.Add(1) }))

	conn := testutil.NewFakeConnection(types.NewSubjectID(), "frank")
	m.Get(conn)
	assert.Eventually(t, func() bool {
		m.Get(conn)
		return calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)
}
