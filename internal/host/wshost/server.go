package wshost

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/dep2p/go-permsync/internal/i18n"
	"github.com/dep2p/go-permsync/pkg/interfaces"
	"github.com/dep2p/go-permsync/pkg/lib/log"
	"github.com/dep2p/go-permsync/pkg/types"
)

var logger = log.Logger("host/wshost")

// Config 宿主配置
type Config struct {
	Listen       string
	PingInterval time.Duration
	WriteTimeout time.Duration

	// MetricsPath 为空时不暴露指标
	MetricsPath string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Listen:       "127.0.0.1:7480",
		PingInterval: 30 * time.Second,
		WriteTimeout: 5 * time.Second,
		MetricsPath:  "/metrics",
	}
}

// Admitter 准入流水线
type Admitter interface {
	PreAdmit(ctx context.Context, conn interfaces.Connection) error
	Activate(conn interfaces.Connection) error
	Disconnect(conn interfaces.Connection)
}

// Registry 连接注册表
type Registry interface {
	Register(conn interfaces.Connection) error
	Unregister(conn interfaces.Connection)
}

// Server WebSocket 宿主
type Server struct {
	cfg       Config
	admitter  Admitter
	registry  Registry
	localizer interfaces.Localizer
	gatherer  prometheus.Gatherer

	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	httpSrv  *http.Server
	listener net.Listener
}

var _ interfaces.Refresher = (*Server)(nil)

// Option 选项
type Option func(*Server)

// WithLocalizer 设置本地化
func WithLocalizer(l interfaces.Localizer) Option {
	return func(s *Server) {
		s.localizer = l
	}
}

// WithGatherer 设置指标来源
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// New 创建宿主
func New(cfg Config, admitter Admitter, registry Registry, opts ...Option) *Server {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultConfig().PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		admitter: admitter,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler 返回 HTTP 路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/connect", s.handleConnect)
	if s.cfg.MetricsPath != "" && s.gatherer != nil {
		mux.Handle(s.cfg.MetricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start 开始监听
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpSrv != nil {
		return errors.New("wshost: already started")
	}

	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("wshost: listen %s: %w", s.cfg.Listen, err)
	}
	s.listener = ln
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP 服务异常退出", "error", err)
		}
	}()

	logger.Info("WebSocket 宿主已启动", "addr", ln.Addr().String())
	return nil
}

// Addr 返回实际监听地址，未启动时为空
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop 停止监听并等待所有连接处理结束
//
// 仍在处理的连接随之关闭。
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()

	s.cancel()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return multierr.Append(err, ctx.Err())
	}
	return err
}

// Refresh 实现 interfaces.Refresher
func (s *Server) Refresh(conn interfaces.Connection) error {
	c, ok := conn.(*wsConn)
	if !ok {
		return fmt.Errorf("wshost: unsupported connection %T", conn)
	}
	return c.send(Message{Type: MsgRefresh})
}

// ============================================================================
//                              连接处理
// ============================================================================

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	subject, err := types.ParseSubjectID(q.Get("subject"))
	if err != nil {
		http.Error(w, "invalid subject", http.StatusBadRequest)
		return
	}
	name := q.Get("name")
	if name == "" {
		name = subject.ShortString()
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("WebSocket 升级失败", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newWSConn(ws, subject, name, q.Get("locale"), s.cfg.WriteTimeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.serve(c)
	}()
}

func (s *Server) serve(c *wsConn) {
	defer c.close()

	if err := s.registry.Register(c); err != nil {
		logger.Info("拒绝连接", "conn", c.String(), "error", err)
		_ = c.Kick(s.render(i18n.KeyDuplicate, c.Locale()))
		return
	}
	// 先注销再进入断开阶段，卸载到期时主体已不在线
	defer func() {
		s.registry.Unregister(c)
		s.admitter.Disconnect(c)
	}()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		c.readLoop(2 * s.cfg.PingInterval)
	}()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	go func() {
		select {
		case <-readDone:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.admitter.PreAdmit(ctx, c); err != nil {
		logger.Debug("预登录未通过", "conn", c.String(), "error", err)
		c.close()
		<-readDone
		return
	}
	if err := s.admitter.Activate(c); err != nil {
		logger.Debug("激活未通过", "conn", c.String(), "error", err)
		c.close()
		<-readDone
		return
	}
	if err := c.send(Message{Type: MsgAdmitted}); err != nil {
		logger.Debug("发送准入消息失败", "conn", c.String(), "error", err)
	}

	s.keepAlive(c, readDone)
	c.close()
	<-readDone
}

// keepAlive 定时发送 ping，直到读循环结束或宿主停止
func (s *Server) keepAlive(c *wsConn, readDone <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-readDone:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				logger.Debug("发送心跳失败", "conn", c.String(), "error", err)
				return
			}
		}
	}
}

func (s *Server) render(key, locale string) string {
	if s.localizer == nil {
		return key
	}
	return s.localizer.Render(key, locale)
}
