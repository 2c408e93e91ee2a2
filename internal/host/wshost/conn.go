package wshost

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"go.uber.org/multierr"

	"github.com/dep2p/go-permsync/pkg/interfaces"
	"github.com/dep2p/go-permsync/pkg/types"
)

// 消息类型
const (
	MsgAdmitted = "admitted"
	MsgRefresh  = "refresh"
	MsgKick     = "kick"
)

// maxCloseReason 关闭帧原因的最大字节数
const maxCloseReason = 123

// ErrConnClosed 连接已关闭
var ErrConnClosed = errors.New("wshost: connection closed")

// Message 服务端消息
type Message struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

// wsConn 一个 WebSocket 连接
type wsConn struct {
	id      types.ConnID
	subject types.SubjectID
	name    string
	locale  string

	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	online    atomic.Bool
	closeOnce sync.Once
}

var _ interfaces.Connection = (*wsConn)(nil)

func newWSConn(ws *websocket.Conn, subject types.SubjectID, name, locale string, writeTimeout time.Duration) *wsConn {
	c := &wsConn{
		id:           types.NewConnID(),
		subject:      subject,
		name:         name,
		locale:       locale,
		ws:           ws,
		writeTimeout: writeTimeout,
	}
	c.online.Store(true)
	return c
}

func (c *wsConn) ID() types.ConnID         { return c.id }
func (c *wsConn) Subject() types.SubjectID { return c.subject }
func (c *wsConn) DisplayName() string      { return c.name }
func (c *wsConn) Locale() string           { return c.locale }
func (c *wsConn) Online() bool             { return c.online.Load() }
func (c *wsConn) RemoteAddr() string       { return c.ws.RemoteAddr().String() }
func (c *wsConn) deadline() time.Time      { return time.Now().Add(c.writeTimeout) }
func (c *wsConn) markOffline()             { c.online.Store(false) }
func (c *wsConn) String() string           { return c.subject.ShortString() + "/" + c.name }

// Kick 发送踢出消息和关闭帧，然后关闭底层连接
//
// 连接已离线时不做任何事。
func (c *wsConn) Kick(message string) error {
	if !c.online.CompareAndSwap(true, false) {
		return nil
	}

	err := c.writeJSON(Message{Type: MsgKick, Reason: message})

	c.writeMu.Lock()
	closeErr := c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, truncateReason(message)),
		c.deadline())
	c.writeMu.Unlock()

	c.close()
	return multierr.Append(err, closeErr)
}

// send 发送一条消息
func (c *wsConn) send(msg Message) error {
	if !c.online.Load() {
		return ErrConnClosed
	}
	return c.writeJSON(msg)
}

func (c *wsConn) writeJSON(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(c.deadline())
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, c.deadline())
}

// readLoop 读取直到客户端断开，客户端消息被丢弃
func (c *wsConn) readLoop(readTimeout time.Duration) {
	defer c.markOffline()

	c.ws.SetReadLimit(4096)
	_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("读取失败", "conn", c.String(), "error", err)
			}
			return
		}
	}
}

func (c *wsConn) close() {
	c.closeOnce.Do(func() {
		c.markOffline()
		_ = c.ws.Close()
	})
}

// truncateReason 截断到关闭帧允许的长度，不切断 UTF-8 字符
func truncateReason(s string) string {
	if len(s) <= maxCloseReason {
		return s
	}
	s = s[:maxCloseReason]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
