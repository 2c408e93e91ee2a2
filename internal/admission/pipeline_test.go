package admission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-permsync/internal/core/connmgr"
	"github.com/dep2p/go-permsync/internal/core/eventbus"
	"github.com/dep2p/go-permsync/internal/core/lifecycle"
	"github.com/dep2p/go-permsync/internal/core/scheduler"
	"github.com/dep2p/go-permsync/internal/i18n"
	"github.com/dep2p/go-permsync/internal/testutil"
	"github.com/dep2p/go-permsync/pkg/interfaces"
	"github.com/dep2p/go-permsync/pkg/types"
)

// ============================================================================
//                              测试辅助
// ============================================================================

type harness struct {
	pipeline *Pipeline
	conns    *connmgr.Manager
	store    *testutil.FakeStateStore
	contexts *testutil.RecordingSignaler
	gate     *lifecycle.Coordinator
	loop     *scheduler.Loop
	clock    *clock.Mock
	logins   <-chan interface{}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mock := clock.NewMock()
	bus := eventbus.NewBus()
	sub, err := bus.Subscribe(new(types.EvtLoginProcess), interfaces.BufSize(64))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	gate := lifecycle.NewCoordinator(lifecycle.WithClock(mock))
	gate.MarkReady()
	t.Cleanup(gate.Stop)

	loop := scheduler.NewLoop(scheduler.WithClock(mock))
	require.NoError(t, loop.Start(context.Background()))
	t.Cleanup(func() { _ = loop.Stop() })

	h := &harness{
		conns:    connmgr.New(),
		store:    testutil.NewFakeStateStore(),
		contexts: &testutil.RecordingSignaler{},
		gate:     gate,
		loop:     loop,
		clock:    mock,
		logins:   sub.Out(),
	}
	h.pipeline, err = New(DefaultConfig(), Dependencies{
		Gate:      gate,
		Transport: h.conns,
		Store:     h.store,
		Scheduler: loop,
		Contexts:  h.contexts,
		Localizer: testutil.KeyLocalizer{},
		EventBus:  bus,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.pipeline.Close() })
	return h
}

func (h *harness) connect(t *testing.T, name string) *testutil.FakeConnection {
	t.Helper()
	conn := testutil.NewFakeConnection(types.NewSubjectID(), name)
	require.NoError(t, h.conns.Register(conn))
	return conn
}

func (h *harness) nextLogin(t *testing.T) types.EvtLoginProcess {
	t.Helper()
	select {
	case evt := <-h.logins:
		return evt.(types.EvtLoginProcess)
	case <-time.After(time.Second):
		t.Fatal("未收到登录处理事件")
		return types.EvtLoginProcess{}
	}
}

func (h *harness) noLogin(t *testing.T) {
	t.Helper()
	select {
	case evt := <-h.logins:
		t.Fatalf("不应发出登录处理事件: %+v", evt)
	case <-time.After(20 * time.Millisecond):
	}
}

// ============================================================================
//                              预登录
// ============================================================================

// TestPreAdmit_SuccessThenActivate 测试加载成功后激活
func TestPreAdmit_SuccessThenActivate(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t, "alice")

	require.NoError(t, h.pipeline.PreAdmit(context.Background(), conn))

	// 激活前状态已存在
	_, ok := h.store.Lookup(conn.Subject())
	assert.True(t, ok)
	phase, _ := h.pipeline.Phase(conn.Subject())
	assert.Equal(t, PhasePreAdmitted, phase)
	assert.True(t, h.pipeline.UniqueConnections().Contains(conn.Subject()))

	evt := h.nextLogin(t)
	assert.Equal(t, conn.Subject(), evt.Subject)
	assert.Equal(t, "alice", evt.Name)
	assert.False(t, evt.Denied())

	require.NoError(t, h.pipeline.Activate(conn))
	phase, _ = h.pipeline.Phase(conn.Subject())
	assert.Equal(t, PhaseActive, phase)
	assert.Equal(t, []types.SubjectID{conn.Subject()}, h.contexts.Updates())
	assert.True(t, h.conns.IsOnline(conn.Subject()))
	assert.Empty(t, conn.Kicks())
}

// TestPreAdmit_LoadFailure 测试加载失败踢出连接并发出拒绝事件
func TestPreAdmit_LoadFailure(t *testing.T) {
	h := newHarness(t)
	cause := errors.New("database offline")
	h.store.LoadFunc = func(context.Context, types.SubjectID, string) (interfaces.SessionState, error) {
		return nil, cause
	}
	conn := h.connect(t, "bob")

	err := h.pipeline.PreAdmit(context.Background(), conn)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.ErrorIs(t, err, cause)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, conn.Subject(), loadErr.Subject)

	assert.Equal(t, []string{i18n.KeyDatabaseError}, conn.Kicks())
	assert.False(t, h.conns.IsLive(conn))
	assert.False(t, h.pipeline.UniqueConnections().Contains(conn.Subject()))

	evt := h.nextLogin(t)
	assert.True(t, evt.Denied())
	assert.Nil(t, evt.State)

	// 激活仍然发生时按"从未预登录"拒绝
	err = h.pipeline.Activate(conn)
	assert.ErrorIs(t, err, ErrNeverPreAdmitted)
	assert.NotErrorIs(t, err, ErrStateVanished)
	assert.Equal(t, []string{i18n.KeyDatabaseError, i18n.KeyStateError}, conn.Kicks())
	assert.Empty(t, h.contexts.Updates())
}

// TestPreAdmit_ConnectionGone 测试连接已失效时不加载
func TestPreAdmit_ConnectionGone(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t, "carol")
	conn.SetOnline(false)

	err := h.pipeline.PreAdmit(context.Background(), conn)
	assert.ErrorIs(t, err, ErrConnectionGone)
	assert.Equal(t, 0, h.store.Loads())
	_, tracked := h.pipeline.Phase(conn.Subject())
	assert.False(t, tracked)
	h.noLogin(t)
}

// TestPreAdmit_ReadyTimeoutIsNonFatal 测试就绪等待超时后继续
func TestPreAdmit_ReadyTimeoutIsNonFatal(t *testing.T) {
	mock := clock.NewMock()
	gate := lifecycle.NewCoordinator(lifecycle.WithClock(mock))
	defer gate.Stop()

	conns := connmgr.New()
	store := testutil.NewFakeStateStore()
	p, err := New(Config{ReadyTimeout: time.Minute}, Dependencies{
		Gate:      gate,
		Transport: conns,
		Store:     store,
	})
	require.NoError(t, err)

	conn := testutil.NewFakeConnection(types.NewSubjectID(), "dave")
	require.NoError(t, conns.Register(conn))

	done := make(chan error, 1)
	go func() { done <- p.PreAdmit(context.Background(), conn) }()

	var result error
	require.Eventually(t, func() bool {
		mock.Add(time.Minute)
		select {
		case result = <-done:
			return true
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	assert.NoError(t, result)
	assert.Equal(t, 1, store.Loads())
}

// TestPreAdmit_WaitsForReadiness 测试就绪前阻塞，就绪后立即继续
func TestPreAdmit_WaitsForReadiness(t *testing.T) {
	mock := clock.NewMock()
	gate := lifecycle.NewCoordinator(lifecycle.WithClock(mock))
	defer gate.Stop()

	conns := connmgr.New()
	store := testutil.NewFakeStateStore()
	p, err := New(DefaultConfig(), Dependencies{Gate: gate, Transport: conns, Store: store})
	require.NoError(t, err)

	conn := testutil.NewFakeConnection(types.NewSubjectID(), "erin")
	require.NoError(t, conns.Register(conn))

	done := make(chan error, 1)
	go func() { done <- p.PreAdmit(context.Background(), conn) }()

	select {
	case <-done:
		t.Fatal("就绪前不应完成")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, 0, store.Loads())

	gate.MarkReady()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("就绪后应继续")
	}
}

// TestPreAdmit_NoLockAcrossLoad 测试一个主体的慢加载不阻塞其他主体
func TestPreAdmit_NoLockAcrossLoad(t *testing.T) {
	h := newHarness(t)
	slow := h.connect(t, "slow")
	fast := h.connect(t, "fast")

	release := make(chan struct{})
	h.store.LoadFunc = func(ctx context.Context, subject types.SubjectID, _ string) (interfaces.SessionState, error) {
		if subject == slow.Subject() {
			<-release
		}
		return &testutil.FakeState{ID: subject}, nil
	}

	slowDone := make(chan error, 1)
	go func() { slowDone <- h.pipeline.PreAdmit(context.Background(), slow) }()

	require.Eventually(t, func() bool {
		phase, ok := h.pipeline.Phase(slow.Subject())
		return ok && phase == PhaseConnecting
	}, time.Second, time.Millisecond)

	require.NoError(t, h.pipeline.PreAdmit(context.Background(), fast))
	require.NoError(t, h.pipeline.Activate(fast))

	close(release)
	require.NoError(t, <-slowDone)
}

// ============================================================================
//                              激活
// ============================================================================

// TestActivate_StateVanished 测试预登录后状态被驱逐
func TestActivate_StateVanished(t *testing.T) {
	h := newHarness(t)
	conn := testutil.NewFakeConnection(types.NewSubjectID(), "frank").WithLocale("zh-CN")
	require.NoError(t, h.conns.Register(conn))

	require.NoError(t, h.pipeline.PreAdmit(context.Background(), conn))
	h.store.Evict(conn.Subject())

	err := h.pipeline.Activate(conn)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStateVanished)
	assert.NotErrorIs(t, err, ErrNeverPreAdmitted)

	var denial *DenialError
	require.ErrorAs(t, err, &denial)
	assert.Equal(t, conn.Subject(), denial.Subject)

	phase, _ := h.pipeline.Phase(conn.Subject())
	assert.Equal(t, PhaseDenied, phase)
	assert.Equal(t, []string{i18n.KeyStateError}, conn.Kicks())
	assert.Empty(t, h.contexts.Updates(), "拒绝后不发出上下文信号")
	assert.False(t, h.conns.IsOnline(conn.Subject()))
}

// TestActivate_NeverPreAdmitted 测试未经预登录直接激活
func TestActivate_NeverPreAdmitted(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t, "grace")

	err := h.pipeline.Activate(conn)
	assert.ErrorIs(t, err, ErrNeverPreAdmitted)
	assert.Equal(t, []string{i18n.KeyStateError}, conn.Kicks())
}

// TestActivate_LocalizedMessage 测试拒绝消息按连接语言渲染
func TestActivate_LocalizedMessage(t *testing.T) {
	catalog, err := i18n.LoadEmbedded()
	require.NoError(t, err)

	conns := connmgr.New()
	p, err := New(DefaultConfig(), Dependencies{
		Transport: conns,
		Store:     testutil.NewFakeStateStore(),
		Localizer: catalog,
	})
	require.NoError(t, err)

	conn := testutil.NewFakeConnection(types.NewSubjectID(), "heidi").WithLocale("zh-CN")
	require.NoError(t, conns.Register(conn))

	require.Error(t, p.Activate(conn))
	assert.Equal(t, []string{catalog.Render(i18n.KeyStateError, "zh-CN")}, conn.Kicks())
}

// ============================================================================
//                              断开
// ============================================================================

// TestDisconnect 测试断开同步清理，上下文清理推迟到下一个 tick
func TestDisconnect(t *testing.T) {
	h := newHarness(t)
	conn := h.connect(t, "ivan")

	require.NoError(t, h.pipeline.PreAdmit(context.Background(), conn))
	require.NoError(t, h.pipeline.Activate(conn))

	var onLoop bool
	var mu sync.Mutex
	h.contexts.OnQuitHook = func(types.SubjectID) {
		mu.Lock()
		onLoop = h.loop.Executing()
		mu.Unlock()
	}

	h.pipeline.Disconnect(conn)

	_, tracked := h.pipeline.Phase(conn.Subject())
	assert.False(t, tracked)
	assert.Equal(t, []types.SubjectID{conn.Subject()}, h.store.Unloads())
	assert.Empty(t, h.contexts.Quits(), "下一个 tick 之前不通知")

	require.Eventually(t, func() bool {
		h.clock.Add(scheduler.DefaultTickInterval)
		return len(h.contexts.Quits()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, conn.Subject(), h.contexts.Quits()[0])

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, onLoop, "OnQuit 应在指定执行上下文中运行")
}

// TestDisconnect_SupersededConnection 测试重连后旧连接的迟到断开不影响新会话
func TestDisconnect_SupersededConnection(t *testing.T) {
	h := newHarness(t)
	old := h.connect(t, "judy")
	require.NoError(t, h.pipeline.PreAdmit(context.Background(), old))
	require.NoError(t, h.pipeline.Activate(old))
	h.nextLogin(t)

	// 旧连接掉线但宿主尚未回调断开，主体已重新登录
	old.SetOnline(false)
	fresh := testutil.NewFakeConnection(old.Subject(), "judy")
	require.NoError(t, h.conns.Register(fresh))
	require.NoError(t, h.pipeline.PreAdmit(context.Background(), fresh))
	require.NoError(t, h.pipeline.Activate(fresh))
	h.nextLogin(t)

	h.conns.Unregister(old)
	h.pipeline.Disconnect(old)

	phase, tracked := h.pipeline.Phase(fresh.Subject())
	require.True(t, tracked)
	assert.Equal(t, PhaseActive, phase)
	assert.Empty(t, h.store.Unloads())

	for i := 0; i < 3; i++ {
		h.clock.Add(scheduler.DefaultTickInterval)
		time.Sleep(5 * time.Millisecond)
	}
	assert.Empty(t, h.contexts.Quits())

	// 新连接自己的断开照常清理
	h.conns.Unregister(fresh)
	h.pipeline.Disconnect(fresh)
	_, tracked = h.pipeline.Phase(fresh.Subject())
	assert.False(t, tracked)
	assert.Equal(t, []types.SubjectID{fresh.Subject()}, h.store.Unloads())
}

// TestPipeline_ConcurrentSubjects 测试不同主体并发通过流水线
func TestPipeline_ConcurrentSubjects(t *testing.T) {
	h := newHarness(t)

	const n = 32
	conns := make([]*testutil.FakeConnection, n)
	for i := range conns {
		conns[i] = h.connect(t, "user")
	}

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *testutil.FakeConnection) {
			defer wg.Done()
			assert.NoError(t, h.pipeline.PreAdmit(context.Background(), c))
			assert.NoError(t, h.pipeline.Activate(c))
		}(c)
	}
	wg.Wait()

	assert.Equal(t, n, h.pipeline.Tracked())
	assert.Equal(t, n, h.pipeline.UniqueConnections().Len())
	for _, c := range conns {
		phase, _ := h.pipeline.Phase(c.Subject())
		assert.Equal(t, PhaseActive, phase)
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(DefaultConfig(), Dependencies{Store: testutil.NewFakeStateStore()})
	assert.Error(t, err)
	_, err = New(DefaultConfig(), Dependencies{Transport: connmgr.New()})
	assert.Error(t, err)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "pre_admitted", PhasePreAdmitted.String())
	assert.Equal(t, "unknown", Phase(99).String())
}
