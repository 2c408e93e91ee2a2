package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-permsync/pkg/types"
)

// TestDispatcher_RoutesByType 测试按事件类型分发
func TestDispatcher_RoutesByType(t *testing.T) {
	bus := NewBus()
	d := NewDispatcher(bus)
	defer d.Close()

	var mu sync.Mutex
	var got []string
	record := func(s string) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	}

	require.NoError(t, d.On(new(types.EvtStateRecalculated), func(evt interface{}) {
		record("state")
	}))
	require.NoError(t, d.On(new(types.EvtContextChanged), func(evt interface{}) {
		record("context")
	}))

	emState, _ := bus.Emitter(new(types.EvtStateRecalculated))
	defer emState.Close()
	emCtx, _ := bus.Emitter(new(types.EvtContextChanged))
	defer emCtx.Close()

	require.NoError(t, emState.Emit(types.EvtStateRecalculated{}))
	require.NoError(t, emCtx.Emit(types.EvtContextChanged{}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"state", "context"}, got)
}

// TestDispatcher_DuplicateRegistration 测试同一类型不能重复注册
func TestDispatcher_DuplicateRegistration(t *testing.T) {
	d := NewDispatcher(NewBus())
	defer d.Close()

	require.NoError(t, d.On(new(types.EvtContextChanged), func(interface{}) {}))
	assert.Error(t, d.On(new(types.EvtContextChanged), func(interface{}) {}))
}

// TestDispatcher_RecoversPanic 测试处理函数 panic 后继续处理
func TestDispatcher_RecoversPanic(t *testing.T) {
	bus := NewBus()
	d := NewDispatcher(bus)
	defer d.Close()

	var mu sync.Mutex
	handled := 0
	require.NoError(t, d.On(new(types.EvtContextChanged), func(evt interface{}) {
		if evt.(types.EvtContextChanged).Source == "boom" {
			panic("boom")
		}
		mu.Lock()
		handled++
		mu.Unlock()
	}))

	em, _ := bus.Emitter(new(types.EvtContextChanged))
	defer em.Close()
	require.NoError(t, em.Emit(types.EvtContextChanged{Source: "boom"}))
	require.NoError(t, em.Emit(types.EvtContextChanged{Source: "ok"}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return handled == 1
	}, time.Second, 5*time.Millisecond)
}

// TestDispatcher_SlowHandlerLosesNothing 测试处理函数阻塞期间的突发事件全部送达
func TestDispatcher_SlowHandlerLosesNothing(t *testing.T) {
	bus := NewBus()
	d := NewDispatcher(bus)
	defer d.Close()

	release := make(chan struct{})
	var mu sync.Mutex
	handled := 0
	require.NoError(t, d.On(new(types.EvtStateRecalculated), func(interface{}) {
		<-release
		mu.Lock()
		handled++
		mu.Unlock()
	}))

	em, _ := bus.Emitter(new(types.EvtStateRecalculated))
	defer em.Close()

	// 远超订阅缓冲区
	const n = 10 * DefaultBufferSize
	for i := 0; i < n; i++ {
		require.NoError(t, em.Emit(types.EvtStateRecalculated{Subject: types.NewSubjectID()}))
	}
	close(release)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return handled == n
	}, 5*time.Second, 5*time.Millisecond)
}

// TestDispatcher_CloseDrainsQueued 测试关闭时已入队的事件先处理完
func TestDispatcher_CloseDrainsQueued(t *testing.T) {
	bus := NewBus()
	d := NewDispatcher(bus)

	var mu sync.Mutex
	handled := 0
	require.NoError(t, d.On(new(types.EvtContextChanged), func(interface{}) {
		time.Sleep(time.Millisecond)
		mu.Lock()
		handled++
		mu.Unlock()
	}))

	em, _ := bus.Emitter(new(types.EvtContextChanged))
	defer em.Close()
	for i := 0; i < 20; i++ {
		require.NoError(t, em.Emit(types.EvtContextChanged{Source: i}))
	}

	require.NoError(t, d.Close())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 20, handled)
}

// TestDispatcher_CloseStopsHandlers 测试关闭后不再注册
func TestDispatcher_CloseStopsHandlers(t *testing.T) {
	d := NewDispatcher(NewBus())
	require.NoError(t, d.On(new(types.EvtContextChanged), func(interface{}) {}))
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	assert.Error(t, d.On(new(types.EvtStateRecalculated), func(interface{}) {}))
}
