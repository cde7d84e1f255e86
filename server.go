package ws_tunnel

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/e1732a364fed/ws_tunnel/advLayer/ws"
	"github.com/e1732a364fed/ws_tunnel/netLayer"
	"github.com/e1732a364fed/ws_tunnel/proxy"
	"github.com/e1732a364fed/ws_tunnel/utils"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ws握手 与 第一条消息 各自的时限
var (
	HandshakeTimeout    = time.Second * 8
	FirstMessageTimeout = time.Second * 8
)

var errServerStopping = errors.New("server stopping")

// Server 接受 websocket 连接, 为每个连接 开启一个 Session.
type Server struct {
	conf resolved

	parsers  *proxy.ParserSet
	wsServer *ws.Server

	directory netLayer.Directory

	rndMu sync.Mutex
	rnd   *rand.Rand

	ctx    context.Context
	cancel context.CancelFunc

	sessionWG      sync.WaitGroup
	activeSessions atomic.Int64
	totalSessions  atomic.Uint64

	listenerMu sync.Mutex
	listeners  []net.Listener
}

// NewServer 验证配置 并初始化所有 Parser. dir 为 国家代码目录, 可为nil.
func NewServer(sc ServerConf, dir netLayer.Directory) (*Server, error) {
	r, err := sc.resolve()
	if err != nil {
		return nil, err
	}

	parsers, err := proxy.NewParserSet(&r.parserConf)
	if err != nil {
		return nil, err
	}

	s := &Server{
		conf:      r,
		parsers:   parsers,
		directory: dir,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wsServer = ws.NewServer(s.acceptPath, true)
	s.wsServer.MaxMessageSize = r.maxMessageSize
	return s, nil
}

func (s *Server) acceptPath(path string) bool {
	_, err := netLayer.ParseUpgradePath(path, s.conf.path)
	return err == nil
}

// Serve 阻塞, 直到 l 被关闭.
func (s *Server) Serve(l net.Listener) {
	s.listenerMu.Lock()
	s.listeners = append(s.listeners, l)
	s.listenerMu.Unlock()

	if ce := utils.CanLogInfo("Listening"); ce != nil {
		ce.Write(
			zap.String("addr", l.Addr().String()),
			zap.String("path", s.conf.path),
			zap.String("udp_mode", s.conf.udpMode),
		)
	}

	netLayer.LoopAccept(l, s.handleNewIncomeConnection)
}

// Close 关闭所有监听, 并以 1001 关闭所有会话, 然后等待它们结束.
func (s *Server) Close() error {
	s.cancel()

	s.listenerMu.Lock()
	for _, l := range s.listeners {
		l.Close()
	}
	s.listeners = nil
	s.listenerMu.Unlock()

	s.sessionWG.Wait()
	return nil
}

// trackSession 在 sessionWG 上登记一个会话. Close 开始之后 返回 false.
// 与 Close 共用 listenerMu, 这样 Add 不会晚于 Wait.
func (s *Server) trackSession() bool {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.sessionWG.Add(1)
	return true
}

func (s *Server) ActiveSessions() int64 {
	return s.activeSessions.Load()
}

func (s *Server) TotalSessions() uint64 {
	return s.totalSessions.Load()
}

// 目录可以在运行时被替换, 已经开始的会话 不受影响
func (s *Server) pickCandidate(up netLayer.UpgradePath) (netLayer.Candidate, bool) {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return up.PickCandidate(s.directory, s.rnd)
}

// handleNewIncomeConnection 完成 ws握手, 然后 把连接交给一个新的 Session.
func (s *Server) handleNewIncomeConnection(conn net.Conn) {
	if s.ctx.Err() != nil {
		conn.Close()
		return
	}

	if ce := utils.CanLogDebug("New Accepted Conn"); ce != nil {
		ce.Write(zap.String("from", conn.RemoteAddr().String()))
	}

	conn.SetDeadline(time.Now().Add(HandshakeTimeout))

	wsConn, path, err := s.wsServer.Handshake(conn)
	if err != nil {
		if ce := utils.CanLogWarn("ws handshake failed"); ce != nil {
			ce.Write(zap.String("from", conn.RemoteAddr().String()), zap.Error(err))
		}
		conn.Close()
		return
	}
	conn.SetDeadline(time.Time{})

	up, err := netLayer.ParseUpgradePath(path, s.conf.path)
	if err != nil {
		//Handshake 已经过滤过了, 不会到这里
		wsConn.CloseWithCode(closeCodeFor(err))
		return
	}

	ss := newSession(s, wsConn)
	if c, ok := s.pickCandidate(up); ok {
		ss.candidate = c
		ss.hasCandidate = true
	}

	if !s.trackSession() {
		ss.closeWith(errServerStopping)
		return
	}
	s.activeSessions.Inc()
	s.totalSessions.Inc()
	defer func() {
		s.activeSessions.Dec()
		s.sessionWG.Done()
	}()

	ss.Run()
}
