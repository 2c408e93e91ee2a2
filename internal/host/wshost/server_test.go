package wshost

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-permsync/internal/admission"
	"github.com/dep2p/go-permsync/internal/core/connmgr"
	"github.com/dep2p/go-permsync/internal/core/metrics"
	"github.com/dep2p/go-permsync/internal/i18n"
	"github.com/dep2p/go-permsync/internal/testutil"
	"github.com/dep2p/go-permsync/pkg/interfaces"
	"github.com/dep2p/go-permsync/pkg/types"
)

type fixture struct {
	server *Server
	http   *httptest.Server
	conns  *connmgr.Manager
	store  *testutil.FakeStateStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	f := &fixture{
		conns: connmgr.New(),
		store: testutil.NewFakeStateStore(),
	}
	pipeline, err := admission.New(admission.DefaultConfig(), admission.Dependencies{
		Transport: f.conns,
		Store:     f.store,
		Localizer: testutil.KeyLocalizer{},
		Metrics:   m,
	})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.PingInterval = time.Second
	f.server = New(cfg, pipeline, f.conns,
		WithLocalizer(testutil.KeyLocalizer{}),
		WithGatherer(reg),
	)
	f.http = httptest.NewServer(f.server.Handler())
	t.Cleanup(func() {
		f.http.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = f.server.Stop(ctx)
	})
	return f
}

func (f *fixture) dial(t *testing.T, subject types.SubjectID, name string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/connect?" + url.Values{
		"subject": {subject.String()},
		"name":    {name},
		"locale":  {"en-US"},
	}.Encode()
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) Message {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

// TestServer_AdmitRefreshDisconnect 测试完整连接流程
func TestServer_AdmitRefreshDisconnect(t *testing.T) {
	f := newFixture(t)
	subject := types.NewSubjectID()
	ws := f.dial(t, subject, "alice")

	assert.Equal(t, MsgAdmitted, readMessage(t, ws).Type)
	require.True(t, f.conns.IsOnline(subject))

	conn, ok := f.conns.Connection(subject)
	require.True(t, ok)
	assert.Equal(t, "alice", conn.DisplayName())
	assert.Equal(t, "en-US", conn.Locale())

	require.NoError(t, f.server.Refresh(conn))
	assert.Equal(t, MsgRefresh, readMessage(t, ws).Type)

	require.NoError(t, ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	assert.Eventually(t, func() bool {
		return f.conns.Count() == 0 && len(f.store.Unloads()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, f.conns.IsOnline(subject))
}

// TestServer_LoadFailureKicks 测试加载失败时客户端收到踢出消息
func TestServer_LoadFailureKicks(t *testing.T) {
	f := newFixture(t)
	f.store.LoadFunc = func(context.Context, types.SubjectID, string) (interfaces.SessionState, error) {
		return nil, errors.New("database offline")
	}

	ws := f.dial(t, types.NewSubjectID(), "bob")
	msg := readMessage(t, ws)
	assert.Equal(t, MsgKick, msg.Type)
	assert.Equal(t, i18n.KeyDatabaseError, msg.Reason)

	_, _, err := ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "err=%v", err)

	assert.Eventually(t, func() bool { return f.conns.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

// TestServer_DuplicateSubject 测试同一主体重复连接被拒绝
func TestServer_DuplicateSubject(t *testing.T) {
	f := newFixture(t)
	subject := types.NewSubjectID()

	first := f.dial(t, subject, "carol")
	assert.Equal(t, MsgAdmitted, readMessage(t, first).Type)

	second := f.dial(t, subject, "carol")
	msg := readMessage(t, second)
	assert.Equal(t, MsgKick, msg.Type)
	assert.Equal(t, i18n.KeyDuplicate, msg.Reason)

	// 第一个连接不受影响
	assert.True(t, f.conns.IsOnline(subject))
	assert.Empty(t, f.store.Unloads())
}

// TestServer_InvalidSubject 测试无效主体标识
func TestServer_InvalidSubject(t *testing.T) {
	f := newFixture(t)

	u := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/connect?subject=nope"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// TestServer_Metrics 测试指标端点
func TestServer_Metrics(t *testing.T) {
	f := newFixture(t)
	ws := f.dial(t, types.NewSubjectID(), "dave")
	assert.Equal(t, MsgAdmitted, readMessage(t, ws).Type)

	resp, err := http.Get(f.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestServer_StartStop 测试监听与关闭
func TestServer_StartStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Listen = "127.0.0.1:0"
	s := New(cfg, nil, connmgr.New())

	require.NoError(t, s.Start(context.Background()))
	assert.NotEmpty(t, s.Addr())
	assert.Error(t, s.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestTruncateReason(t *testing.T) {
	assert.Equal(t, "short", truncateReason("short"))

	long := strings.Repeat("权", 100)
	got := truncateReason(long)
	assert.LessOrEqual(t, len(got), maxCloseReason)
	assert.True(t, strings.HasPrefix(long, got))
	assert.Equal(t, 41*3, len(got))
}
