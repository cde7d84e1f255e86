package ws_tunnel

import (
	"errors"
	"io"
	"net"

	"github.com/e1732a364fed/ws_tunnel/netLayer"
	"github.com/e1732a364fed/ws_tunnel/proxy"
	"github.com/e1732a364fed/ws_tunnel/utils"
	"go.uber.org/zap"
)

var errDenied = errors.New("target denied")

func (ss *Session) dial(addr netLayer.Addr) (net.Conn, error) {
	if ss.server.conf.denyList.Denies(addr) {
		return nil, utils.ErrInErr{ErrDesc: errDenied.Error(), ErrDetail: errDenied, Data: addr.String()}
	}
	return addr.Dial(ss.ctx)
}

// openLocked 拨号, 写入 payload, 然后挂载为 当前目标. 调用者持有 outMu
func (ss *Session) openLocked(addr netLayer.Addr, payload []byte) (net.Conn, error) {
	conn, err := ss.dial(addr)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if _, err = conn.Write(payload); err != nil {
			conn.Close()
			return nil, err
		}
	}

	ss.connMu.Lock()
	if ss.closed {
		ss.connMu.Unlock()
		conn.Close()
		return nil, errSessionClosed
	}
	ss.out = conn
	ss.connMu.Unlock()

	return conn, nil
}

// connectLocked 连接 原目标; 失败时 交给 failoverLocked.
func (ss *Session) connectLocked(addr netLayer.Addr, payload []byte) error {
	conn, err := ss.openLocked(addr, payload)
	if err != nil {
		if errors.Is(err, errSessionClosed) {
			return err
		}
		if ce := utils.CanLogInfo("dial failed"); ce != nil {
			ce.Write(ss.logFields(zap.String("addr", addr.String()), zap.Error(err))...)
		}
		return ss.failoverLocked(proxy.NewErr(proxy.KindDial, "", err))
	}

	ss.setState(StateStreaming)
	go ss.pump(conn)
	return nil
}

// failoverLocked 尝试 用候选地址 重连一次, 并重新发送 replay. 不能重试时 返回 cause.
// 调用者持有 outMu.
func (ss *Session) failoverLocked(cause error) error {
	if !ss.hasCandidate || ss.replayDisabled || ss.hasReceivedRemoteData.Load() {
		return cause
	}
	if !ss.failoverUsed.CAS(false, true) {
		return cause
	}

	addr := ss.candidate.Addr(ss.target.Port)
	if ce := utils.CanLogInfo("failover"); ce != nil {
		ce.Write(ss.logFields(zap.String("addr", addr.String()), zap.Int("replay", len(ss.replay)))...)
	}

	ss.setState(StateConnecting)
	conn, err := ss.openLocked(addr, ss.replay)
	if err != nil {
		if errors.Is(err, errSessionClosed) {
			return err
		}
		return proxy.NewErr(proxy.KindDial, "failover", err)
	}

	ss.setState(StateStreaming)
	go ss.pump(conn)
	return nil
}

// writeToDestination 把客户的数据 原样写入 当前目标.
func (ss *Session) writeToDestination(chunk []byte) error {
	ss.outMu.Lock()
	defer ss.outMu.Unlock()

	ss.connMu.Lock()
	out := ss.out
	ss.connMu.Unlock()
	if out == nil {
		return errSessionClosed
	}

	if ss.hasReceivedRemoteData.Load() {
		ss.replay = nil
	} else if !ss.replayDisabled {
		if len(ss.replay)+len(chunk) > maxReplayLen {
			ss.replay = nil
			ss.replayDisabled = true
		} else {
			ss.replay = append(ss.replay, chunk...)
		}
	}

	if _, err := out.Write(chunk); err != nil {
		if ss.State() == StateClosed {
			return errSessionClosed
		}
		//目标已经断开 而我们还什么都没收到, 与 pump 里读到 EOF 是一样的情况
		ss.detachLocked(out)
		if ferr := ss.failoverLocked(nil); ferr != nil || ss.out == nil {
			if ferr == nil {
				ferr = proxy.NewErr(proxy.KindRelay, "destination", err)
			}
			return ferr
		}
	}
	return nil
}

// 调用者持有 outMu
func (ss *Session) detachLocked(conn net.Conn) {
	conn.Close()
	ss.connMu.Lock()
	if ss.out == conn {
		ss.out = nil
	}
	ss.connMu.Unlock()
}

// pump 把目标的数据 转发给客户. 每个目标连接 一个.
func (ss *Session) pump(conn net.Conn) {
	buf := utils.GetPacket()
	defer utils.PutPacket(buf)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			ss.hasReceivedRemoteData.Store(true)
			if werr := ss.writeToClient(buf[:n]); werr != nil {
				ss.closeWith(errClientClosed)
				return
			}
		}
		if err == nil {
			continue
		}

		if ss.State() == StateClosed {
			return
		}

		ss.connMu.Lock()
		stale := ss.out != conn
		ss.connMu.Unlock()
		if stale {
			//已经被 writeToDestination 换掉了
			return
		}

		if !errors.Is(err, io.EOF) {
			ss.closeWith(proxy.NewErr(proxy.KindRelay, "destination", err))
			return
		}

		if ss.hasReceivedRemoteData.Load() {
			ss.closeWith(nil)
			return
		}

		if ce := utils.CanLogInfo("destination closed without any data"); ce != nil {
			ce.Write(ss.logFields()...)
		}

		ss.outMu.Lock()
		if ss.out != conn {
			//已经被 writeToDestination 换掉了
			ss.outMu.Unlock()
			return
		}
		ss.detachLocked(conn)
		ferr := ss.failoverLocked(nil)
		stillAttached := ss.out != nil
		ss.outMu.Unlock()

		if ferr != nil || !stillAttached {
			ss.closeWith(ferr)
		}
		return
	}
}
