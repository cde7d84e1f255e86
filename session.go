package ws_tunnel

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/e1732a364fed/ws_tunnel/advLayer/ws"
	"github.com/e1732a364fed/ws_tunnel/netLayer"
	"github.com/e1732a364fed/ws_tunnel/proxy"
	"github.com/e1732a364fed/ws_tunnel/utils"
	gws "github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type State int32

const (
	StateSniffing State = iota
	StateAuthFailed
	StateParseFailed
	StateHeaderOK
	StateConnecting
	StateStreaming
	StateDNSMode
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateSniffing:
		return "sniffing"
	case StateAuthFailed:
		return "auth_failed"
	case StateParseFailed:
		return "parse_failed"
	case StateHeaderOK:
		return "header_ok"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateDNSMode:
		return "dns_mode"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// 在收到目标的第一个字节之前, 发给目标的数据 都要留一份, failover 时 重新发送. 超过此长度 就放弃 failover
const maxReplayLen = 64 * 1024

var errSessionClosed = errors.New("session closed")

// Session 对应一个 websocket 连接. 同一时刻 最多只有一个 目标连接 (tcp 或 udp 中继).
//
// 只有一个goroutine 读 websocket (Run), 每个目标连接 各有一个 pump goroutine.
type Session struct {
	ID string

	server *Server
	ws     *ws.Conn

	ctx    context.Context
	cancel context.CancelFunc

	state atomic.Int32

	// metaMu 保护 protocol 与 header, 停止时的关闭 可能与 头部解析 同时发生
	metaMu   sync.Mutex
	protocol proxy.Protocol
	header   *proxy.RequestHeader

	target    netLayer.Addr
	isDNSMode bool

	candidate    netLayer.Candidate
	hasCandidate bool
	failoverUsed atomic.Bool

	hasReceivedRemoteData atomic.Bool

	prefixMu              sync.Mutex
	pendingResponsePrefix []byte

	// outMu 保证 对目标的写入 与 failover 不会交错. 持有 outMu 时 才能读写 out, replay
	outMu          sync.Mutex
	replay         []byte
	replayDisabled bool

	// connMu 保护 closed, 以及 out 与 udp 的 挂载
	connMu sync.Mutex
	closed bool
	out    net.Conn
	udp    udpBridge

	closeOnce sync.Once
}

func newSession(s *Server, wsConn *ws.Conn) *Session {
	ss := &Session{
		ID:     utils.NewSessionID(),
		server: s,
		ws:     wsConn,
	}
	ss.ctx, ss.cancel = context.WithCancel(s.ctx)
	return ss
}

func (ss *Session) State() State {
	return State(ss.state.Load())
}

func (ss *Session) setState(st State) {
	ss.state.Store(int32(st))
}

func (ss *Session) logFields(fs ...zap.Field) []zap.Field {
	fields := []zap.Field{
		zap.String("id", ss.ID),
		zap.String("from", ss.ws.RemoteAddr().String()),
		zap.String("state", ss.State().String()),
	}
	p, h := ss.meta()
	if p != proxy.ProtocolUnknown {
		fields = append(fields, zap.String("protocol", p.String()))
	}
	if h != nil {
		fields = append(fields, zap.String("target", h.String()))
	}
	return append(fields, fs...)
}

func (ss *Session) meta() (proxy.Protocol, *proxy.RequestHeader) {
	ss.metaMu.Lock()
	defer ss.metaMu.Unlock()
	return ss.protocol, ss.header
}

func (ss *Session) setMeta(p proxy.Protocol, h *proxy.RequestHeader) {
	ss.metaMu.Lock()
	ss.protocol, ss.header = p, h
	ss.metaMu.Unlock()
}

// Run 读取 websocket 消息 直到会话结束. 阻塞.
func (ss *Session) Run() {
	go func() {
		<-ss.ctx.Done()
		if ss.server.ctx.Err() != nil {
			ss.closeWith(errServerStopping)
		}
	}()

	ss.ws.SetReadDeadline(time.Now().Add(FirstMessageTimeout))

	for {
		chunk, err := ss.ws.ReadMessage()
		if err != nil {
			ss.closeWith(classifyWsReadErr(err))
			return
		}
		if len(chunk) == 0 {
			continue
		}
		if err = ss.handleChunk(chunk); err != nil {
			ss.closeWith(err)
			return
		}
	}
}

func (ss *Session) handleChunk(chunk []byte) error {
	switch ss.State() {
	case StateSniffing:
		ss.ws.SetReadDeadline(time.Time{})
		return ss.handleFirstChunk(chunk)

	case StateDNSMode:
		ss.connMu.Lock()
		bridge := ss.udp
		ss.connMu.Unlock()
		if bridge == nil {
			return errSessionClosed
		}
		return bridge.Send(chunk)

	case StateConnecting, StateStreaming:
		return ss.writeToDestination(chunk)
	}
	return errSessionClosed
}

// 头部只解析一次. 解析成功之前 不会向任何地方发送数据
func (ss *Session) handleFirstChunk(chunk []byte) error {
	p, h, err := ss.server.parsers.Parse(chunk)
	if err != nil {
		ss.setMeta(p, nil)
		if errors.Is(err, proxy.ErrAuthentication) {
			ss.setState(StateAuthFailed)
		} else {
			ss.setState(StateParseFailed)
		}
		return err
	}

	ss.setMeta(p, h)
	ss.target = h.Addr()
	ss.pendingResponsePrefix = h.ResponsePrefix
	ss.setState(StateHeaderOK)

	if ce := utils.CanLogInfo("New session"); ce != nil {
		fs := ss.logFields()
		if ss.hasCandidate {
			fs = append(fs, zap.String("failover", ss.candidate.Addr(ss.target.Port).String()))
		}
		ce.Write(fs...)
	}

	payload := append([]byte(nil), h.Payload(chunk)...)

	if h.IsUDP() {
		return ss.startUDP(payload)
	}

	ss.setState(StateConnecting)

	ss.outMu.Lock()
	defer ss.outMu.Unlock()

	ss.replay = payload
	return ss.connectLocked(ss.target, payload)
}

// 只有第一条 发给客户的消息 带有 pendingResponsePrefix
func (ss *Session) writeToClient(data []byte) error {
	ss.prefixMu.Lock()
	prefix := ss.pendingResponsePrefix
	ss.pendingResponsePrefix = nil
	ss.prefixMu.Unlock()

	var err error
	if len(prefix) > 0 {
		_, err = ss.ws.WriteBuffers([][]byte{prefix, data})
	} else {
		_, err = ss.ws.Write(data)
	}
	return err
}

// closeWith 结束会话: 用 err 对应的 关闭码 关闭 websocket, 同时关闭 目标连接. 只有第一次调用有效.
func (ss *Session) closeWith(err error) {
	ss.closeOnce.Do(func() {
		code, reason := closeCodeFor(err)

		if err == nil || errors.Is(err, errClientClosed) {
			if ce := utils.CanLogDebug("session closed"); ce != nil {
				ce.Write(ss.logFields(zap.Int("code", int(code)))...)
			}
		} else if ce := utils.CanLogWarn("session failed"); ce != nil {
			ce.Write(ss.logFields(zap.Int("code", int(code)), zap.String("reason", reason), zap.Error(err))...)
		}

		ss.setState(StateClosed)
		ss.cancel()

		ss.connMu.Lock()
		ss.closed = true
		out, bridge := ss.out, ss.udp
		ss.connMu.Unlock()

		ss.ws.CloseWithCode(code, reason)
		if out != nil {
			out.Close()
		}
		if bridge != nil {
			bridge.Close()
		}
	})
}

var (
	errClientClosed  = errors.New("client closed")
	errClientWsError = errors.New("client websocket error")
)

func classifyWsReadErr(err error) error {
	var ce wsutil.ClosedError
	switch {
	case errors.As(err, &ce), errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		return errClientClosed
	case errors.Is(err, ws.ErrMessageTooLarge), errors.Is(err, ws.ErrNotBinary):
		return err
	}
	return utils.ErrInErr{ErrDesc: errClientWsError.Error(), ErrDetail: errClientWsError, Data: err.Error()}
}

// closeCodeFor 给出 websocket 关闭码 与 原因.
func closeCodeFor(err error) (gws.StatusCode, string) {
	switch {
	case err == nil, errors.Is(err, errClientClosed), errors.Is(err, errSessionClosed):
		return gws.StatusNormalClosure, ""
	case errors.Is(err, errServerStopping):
		return gws.StatusGoingAway, "server shutting down"
	case errors.Is(err, ws.ErrMessageTooLarge):
		return gws.StatusMessageTooBig, "message too large"
	case errors.Is(err, ws.ErrNotBinary):
		return gws.StatusUnsupportedData, "binary only"
	}

	switch proxy.KindOf(err) {
	case proxy.KindAuthentication:
		return gws.StatusPolicyViolation, "unauthorized"
	case proxy.KindProtocolParse:
		return gws.StatusInvalidFramePayloadData, "bad request header"
	case proxy.KindUnsupportedCommand:
		return gws.StatusUnsupportedData, "unsupported command"
	case proxy.KindUnsupportedUDPTarget:
		return gws.StatusUnsupportedData, "unsupported UDP target"
	case proxy.KindDial:
		return gws.StatusInternalServerError, "dial failed"
	case proxy.KindRelay:
		return gws.StatusInternalServerError, "relay failed"
	}
	return gws.StatusInternalServerError, "internal error"
}
