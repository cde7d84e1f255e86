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

var errNoUDPRelay = errors.New("no udp_relay configured")

// udpBridge 承载 一个会话的所有 udp 数据报. Send 只会在 读websocket 的goroutine 中被调用.
type udpBridge interface {
	Send(datagram []byte) error
	Close() error
}

// startUDP 进入 dns 模式. relay 模式 接受任何 udp 目标, doh 模式 只接受 53 端口.
func (ss *Session) startUDP(firstDatagram []byte) error {
	var bridge udpBridge

	switch ss.server.conf.udpMode {
	case UDPModeDoH:
		if ss.header.Port != 53 {
			return proxy.NewErr(proxy.KindUnsupportedUDPTarget, "port", nil)
		}
		bridge = &dohBridge{ss: ss, client: ss.server.conf.doh}

	default:
		rb, err := ss.newRelayBridge()
		if err != nil {
			return err
		}
		bridge = rb
	}

	ss.connMu.Lock()
	if ss.closed {
		ss.connMu.Unlock()
		bridge.Close()
		return errSessionClosed
	}
	ss.udp = bridge
	ss.connMu.Unlock()

	ss.isDNSMode = true
	ss.setState(StateDNSMode)

	if ce := utils.CanLogDebug("udp bridge ready"); ce != nil {
		ce.Write(ss.logFields(zap.String("mode", ss.server.conf.udpMode))...)
	}

	if len(firstDatagram) > 0 {
		return bridge.Send(firstDatagram)
	}
	return nil
}

// relayBridge 把所有数据报 写进 一条到 udp中继 的tcp连接.
type relayBridge struct {
	ss   *Session
	conn net.Conn

	host string
	port int
}

func (ss *Session) newRelayBridge() (*relayBridge, error) {
	conf := &ss.server.conf
	if !conf.hasUDPRelay {
		return nil, proxy.NewErr(proxy.KindRelay, "udp relay", errNoUDPRelay)
	}

	rb := &relayBridge{ss: ss}

	// dns 请求 一律发往 配置的 dns 服务器
	if ss.header.Port == 53 {
		rb.host, rb.port = conf.dnsServer.HostStr(), conf.dnsServer.Port
	} else {
		rb.host, rb.port = ss.header.Address, int(ss.header.Port)
	}

	conn, err := conf.udpRelay.Dial(ss.ctx)
	if err != nil {
		return nil, proxy.NewErr(proxy.KindRelay, "udp relay", err)
	}
	rb.conn = conn

	go rb.pump()
	return rb, nil
}

func (rb *relayBridge) Send(datagram []byte) error {
	if err := netLayer.WriteRelayDatagram(rb.conn, rb.host, rb.port, datagram); err != nil {
		return proxy.NewErr(proxy.KindRelay, "udp relay", err)
	}
	return nil
}

func (rb *relayBridge) Close() error {
	return rb.conn.Close()
}

// 中继的回复 原样转发给客户, 中继关闭 即会话正常结束, 不会 failover.
func (rb *relayBridge) pump() {
	buf := utils.GetPacket()
	defer utils.PutPacket(buf)

	for {
		n, err := rb.conn.Read(buf)
		if n > 0 {
			if werr := rb.ss.writeToClient(buf[:n]); werr != nil {
				rb.ss.closeWith(errClientClosed)
				return
			}
		}
		if err != nil {
			if rb.ss.State() == StateClosed {
				return
			}
			if errors.Is(err, io.EOF) {
				rb.ss.closeWith(nil)
			} else {
				rb.ss.closeWith(proxy.NewErr(proxy.KindRelay, "udp relay", err))
			}
			return
		}
	}
}

// dohBridge 每个数据报 一次 DoH 请求, 回复 作为一条消息 返回给客户.
type dohBridge struct {
	ss     *Session
	client *netLayer.DoHClient
}

func (db *dohBridge) Send(datagram []byte) error {
	answer, err := db.client.Exchange(db.ss.ctx, datagram)
	if err != nil {
		return proxy.NewErr(proxy.KindRelay, "doh", err)
	}
	if len(answer) == 0 {
		return nil
	}
	return db.ss.writeToClient(answer)
}

func (db *dohBridge) Close() error {
	return nil
}
