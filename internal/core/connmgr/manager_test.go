package connmgr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-permsync/internal/testutil"
	"github.com/dep2p/go-permsync/pkg/interfaces"
	"github.com/dep2p/go-permsync/pkg/types"
)

// TestManager_RegisterAndActivate 测试注册、激活与在线查询
func TestManager_RegisterAndActivate(t *testing.T) {
	m := New()
	subject := types.NewSubjectID()
	conn := testutil.NewFakeConnection(subject, "alice")

	require.NoError(t, m.Register(conn))
	assert.True(t, m.IsLive(conn))
	// 未激活时不算在线
	assert.False(t, m.IsOnline(subject))

	require.NoError(t, m.MarkActive(conn))
	assert.True(t, m.IsOnline(subject))

	got, ok := m.Connection(subject)
	require.True(t, ok)
	assert.Equal(t, conn.ID(), got.ID())

	infos := m.Connections()
	require.Len(t, infos, 1)
	assert.True(t, infos[0].Active)
	assert.Equal(t, "alice", infos[0].DisplayName)

	t.Log("✅ 注册与激活测试通过")
}

// TestManager_RegisterErrors 测试重复注册
func TestManager_RegisterErrors(t *testing.T) {
	m := New()
	subject := types.NewSubjectID()
	conn := testutil.NewFakeConnection(subject, "alice")

	require.NoError(t, m.Register(conn))
	assert.ErrorIs(t, m.Register(conn), ErrAlreadyRegistered)

	second := testutil.NewFakeConnection(subject, "alice")
	assert.ErrorIs(t, m.Register(second), ErrDuplicateSubject)

	// 旧连接离线后允许新连接注册
	conn.SetOnline(false)
	assert.NoError(t, m.Register(second))
}

// TestManager_IsLive 测试存活判断
func TestManager_IsLive(t *testing.T) {
	m := New()
	conn := testutil.NewFakeConnection(types.NewSubjectID(), "bob")

	assert.False(t, m.IsLive(conn), "未注册的连接不存活")

	require.NoError(t, m.Register(conn))
	conn.SetOnline(false)
	assert.False(t, m.IsLive(conn), "底层离线的连接不存活")
}

// TestManager_Terminate 测试终止连接
func TestManager_Terminate(t *testing.T) {
	m := New()
	subject := types.NewSubjectID()
	conn := testutil.NewFakeConnection(subject, "carol")
	require.NoError(t, m.Register(conn))
	require.NoError(t, m.MarkActive(conn))

	require.NoError(t, m.Terminate(conn, "bye"))
	assert.Equal(t, []string{"bye"}, conn.Kicks())
	assert.False(t, m.IsLive(conn))
	assert.False(t, m.IsOnline(subject))
	assert.ErrorIs(t, m.MarkActive(conn), ErrNotRegistered)

	failing := testutil.NewFakeConnection(types.NewSubjectID(), "dave")
	failing.FailKick(errors.New("socket closed"))
	assert.Error(t, m.Terminate(failing, "bye"))
}

// TestManager_Unregister 测试移除连接
func TestManager_Unregister(t *testing.T) {
	m := New()
	subject := types.NewSubjectID()
	conn := testutil.NewFakeConnection(subject, "erin")
	require.NoError(t, m.Register(conn))
	require.NoError(t, m.MarkActive(conn))

	m.Unregister(conn)
	m.Unregister(conn)

	assert.Zero(t, m.Count())
	assert.False(t, m.IsOnline(subject))
	assert.ErrorIs(t, m.MarkActive(conn), ErrNotRegistered)
}

// TestManager_Close 测试关闭时踢出所有连接
func TestManager_Close(t *testing.T) {
	m := New()
	a := testutil.NewFakeConnection(types.NewSubjectID(), "a")
	b := testutil.NewFakeConnection(types.NewSubjectID(), "b")
	require.NoError(t, m.Register(a))
	require.NoError(t, m.Register(b))

	require.NoError(t, m.Close(ShutdownMessage))
	require.NoError(t, m.Close(ShutdownMessage))

	assert.Equal(t, []string{ShutdownMessage}, a.Kicks())
	assert.Equal(t, []string{ShutdownMessage}, b.Kicks())
	assert.ErrorIs(t, m.Register(testutil.NewFakeConnection(types.NewSubjectID(), "c")), ErrManagerClosed)
}

// TestModule 测试 fx 模块
func TestModule(t *testing.T) {
	var m *Manager
	var transport interfaces.Transport

	app := fx.New(
		fx.WithLogger(func() fxevent.Logger { return &fxevent.ZapLogger{Logger: zap.NewNop()} }),
		Module(),
		fx.Populate(&m, &transport),
	)
	require.NoError(t, app.Err())
	require.NoError(t, app.Start(context.Background()))

	conn := testutil.NewFakeConnection(types.NewSubjectID(), "fx")
	require.NoError(t, m.Register(conn))
	assert.True(t, transport.IsLive(conn))

	require.NoError(t, app.Stop(context.Background()))
	assert.Equal(t, []string{ShutdownMessage}, conn.Kicks())
}
