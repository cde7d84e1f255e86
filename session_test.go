package ws_tunnel_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	ws_tunnel "github.com/e1732a364fed/ws_tunnel"
	"github.com/e1732a364fed/ws_tunnel/advLayer/ws"
	"github.com/e1732a364fed/ws_tunnel/netLayer"
	"github.com/e1732a364fed/ws_tunnel/proxy/trojan"
	"github.com/e1732a364fed/ws_tunnel/utils"
	gws "github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/shadowsocks/go-shadowsocks2/socks"
	"go.uber.org/atomic"
)

const (
	testUUID  = "1b671a64-40d5-491e-99b0-da01ff1f3341"
	wrongUUID = "2b671a64-40d5-491e-99b0-da01ff1f3341"
)

func startServer(t *testing.T, sc ws_tunnel.ServerConf, dir netLayer.Directory) (*ws_tunnel.Server, string) {
	s, err := ws_tunnel.NewServer(sc, dir)
	if err != nil {
		t.Log(err)
		t.FailNow()
	}
	l, err := netLayer.Listen("tcp", "127.0.0.1:0", false)
	if err != nil {
		t.Log(err)
		t.FailNow()
	}
	go s.Serve(l)
	t.Cleanup(func() { s.Close() })
	return s, l.Addr().String()
}

func dialWs(t *testing.T, addr, path string, earlyData []byte) *ws.Conn {
	c, err := tryDialWs(addr, path, earlyData)
	if err != nil {
		t.Log(err)
		t.FailNow()
	}
	c.SetReadDeadline(time.Now().Add(time.Second * 10))
	t.Cleanup(func() { c.Close() })
	return c
}

func tryDialWs(addr, path string, earlyData []byte) (*ws.Conn, error) {
	cli, err := ws.NewClient(addr, path)
	if err != nil {
		return nil, err
	}
	tcpConn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	return cli.Handshake(ctx, tcpConn, earlyData)
}

// 目标服务器. handle 为nil时 原样回显
type target struct {
	addr    string
	port    int
	accepts atomic.Int32
}

func startTarget(t *testing.T, handle func(net.Conn)) *target {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.FailNow()
	}
	t.Cleanup(func() { l.Close() })

	tg := &target{addr: l.Addr().String(), port: l.Addr().(*net.TCPAddr).Port}
	if handle == nil {
		handle = func(c net.Conn) {
			io.Copy(c, c)
		}
	}
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			tg.accepts.Inc()
			go func() {
				defer c.Close()
				handle(c)
			}()
		}
	}()
	return tg
}

// 一个 什么也不发 直接关闭的目标
func startClosingTarget(t *testing.T) *target {
	return startTarget(t, func(c net.Conn) {})
}

func freePort(t *testing.T) int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.FailNow()
	}
	p := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return p
}

func vlessHeader(uuidStr string, cmd byte, ip []byte, port int, payload []byte) []byte {
	id, _ := utils.StrToUUID(uuidStr)
	bs := append([]byte{0}, id[:]...)
	bs = append(bs, 0, cmd, byte(port>>8), byte(port), 1)
	bs = append(bs, ip...)
	return append(bs, payload...)
}

func vlessAddrFirstHeader(uuidStr string, cmd byte, ip []byte, port int, payload []byte) []byte {
	id, _ := utils.StrToUUID(uuidStr)
	bs := append([]byte{0}, id[:]...)
	bs = append(bs, 0, cmd, 0, 1)
	bs = append(bs, ip...)
	bs = append(bs, byte(port>>8), byte(port))
	return append(bs, payload...)
}

var localhost = []byte{127, 0, 0, 1}

func readMsg(t *testing.T, c *ws.Conn) []byte {
	bs, err := c.ReadMessage()
	if err != nil {
		t.Log(err)
		t.FailNow()
	}
	return bs
}

func readCloseCode(c *ws.Conn) gws.StatusCode {
	for {
		_, err := c.ReadMessage()
		if err != nil {
			var ce wsutil.ClosedError
			if errors.As(err, &ce) {
				return ce.Code
			}
			return 0
		}
	}
}

func TestVlessEarlyData(t *testing.T) {
	echo := startTarget(t, nil)
	_, addr := startServer(t, ws_tunnel.ServerConf{UUID: testUUID}, nil)

	c := dialWs(t, addr, "/ws", vlessHeader(testUUID, 1, localhost, echo.port, []byte("hello")))

	if bs := readMsg(t, c); !bytes.Equal(bs, append([]byte{0, 0}, "hello"...)) {
		t.Log("first frame should carry the response prefix", bs)
		t.FailNow()
	}

	c.Write([]byte("world"))
	if bs := readMsg(t, c); string(bs) != "world" {
		t.Log("prefix must only be sent once", bs)
		t.Fail()
	}
}

func TestTrojanAndShadowsocks(t *testing.T) {
	echo := startTarget(t, nil)
	_, addr := startServer(t, ws_tunnel.ServerConf{UUID: testUUID, TrojanPassword: "pass"}, nil)

	tr := append(trojan.SHA224_hexStringBytes("pass"), '\r', '\n', trojan.CmdConnect)
	tr = append(tr, socks.ParseAddr(echo.addr)...)
	tr = append(tr, '\r', '\n')
	tr = append(tr, "trojan data"...)

	ss := append(socks.ParseAddr(echo.addr), "ss data"...)

	for _, first := range [][]byte{tr, ss} {
		c := dialWs(t, addr, "/ws", nil)
		c.Write(first)

		bs := readMsg(t, c)
		if string(bs) != "trojan data" && string(bs) != "ss data" {
			t.Log("no prefix expected", bs)
			t.Fail()
		}
	}

	c := dialWs(t, addr, "/ws", nil)
	bad := append(trojan.SHA224_hexStringBytes("wrong"), tr[56:]...)
	c.Write(bad)
	if code := readCloseCode(c); code != gws.StatusPolicyViolation {
		t.Log(code)
		t.Fail()
	}
}

func TestFailoverOnEmptyClose(t *testing.T) {
	primary := startClosingTarget(t)
	backup := startTarget(t, nil)
	_, addr := startServer(t, ws_tunnel.ServerConf{UUID: testUUID}, nil)

	c := dialWs(t, addr, "/127.0.0.1:"+strconv.Itoa(backup.port), vlessHeader(testUUID, 1, localhost, primary.port, []byte("hello")))

	if bs := readMsg(t, c); !bytes.Equal(bs, append([]byte{0, 0}, "hello"...)) {
		t.Log(bs)
		t.FailNow()
	}
	c.Write([]byte("again"))
	if bs := readMsg(t, c); string(bs) != "again" {
		t.Log(bs)
		t.Fail()
	}

	if primary.accepts.Load() != 1 || backup.accepts.Load() != 1 {
		t.Log("accepts", primary.accepts.Load(), backup.accepts.Load())
		t.Fail()
	}
}

func TestFailoverCountry(t *testing.T) {
	backup := startTarget(t, nil)
	dir := netLayer.StaticDirectory{"SG": {"127.0.0.1-" + strconv.Itoa(backup.port)}}
	_, addr := startServer(t, ws_tunnel.ServerConf{UUID: testUUID}, dir)

	c := dialWs(t, addr, "/sg", vlessHeader(testUUID, 1, localhost, freePort(t), []byte("hi")))

	if bs := readMsg(t, c); !bytes.Equal(bs, append([]byte{0, 0}, "hi"...)) {
		t.Log(bs)
		t.Fail()
	}
	if backup.accepts.Load() != 1 {
		t.Fail()
	}
}

func TestFailoverOnlyOnce(t *testing.T) {
	primary := startClosingTarget(t)
	backup := startClosingTarget(t)
	_, addr := startServer(t, ws_tunnel.ServerConf{UUID: testUUID}, nil)

	c := dialWs(t, addr, "/127.0.0.1="+strconv.Itoa(backup.port), vlessHeader(testUUID, 1, localhost, primary.port, nil))

	code := readCloseCode(c)
	if code != gws.StatusNormalClosure {
		t.Log(code)
		t.Fail()
	}
	if primary.accepts.Load() != 1 || backup.accepts.Load() != 1 {
		t.Log("accepts", primary.accepts.Load(), backup.accepts.Load())
		t.Fail()
	}
}

func TestNoFailoverAfterData(t *testing.T) {
	primary := startTarget(t, func(c net.Conn) {
		c.Write([]byte("bye"))
	})
	backup := startTarget(t, nil)
	_, addr := startServer(t, ws_tunnel.ServerConf{UUID: testUUID}, nil)

	c := dialWs(t, addr, "/127.0.0.1:"+strconv.Itoa(backup.port), vlessHeader(testUUID, 1, localhost, primary.port, nil))

	if bs := readMsg(t, c); !bytes.Equal(bs, append([]byte{0, 0}, "bye"...)) {
		t.Log(bs)
		t.Fail()
	}
	if code := readCloseCode(c); code != gws.StatusNormalClosure {
		t.Log(code)
		t.Fail()
	}
	if backup.accepts.Load() != 0 {
		t.Log("failover must not happen after data was received")
		t.Fail()
	}
}

func TestDialFailed(t *testing.T) {
	echo := startTarget(t, nil)
	_, addr := startServer(t, ws_tunnel.ServerConf{UUID: testUUID, DenyCIDRs: []string{"127.0.0.0/8"}}, nil)

	c := dialWs(t, addr, "/ws", vlessHeader(testUUID, 1, localhost, echo.port, []byte("x")))
	if code := readCloseCode(c); code != gws.StatusInternalServerError {
		t.Log(code)
		t.Fail()
	}
	if echo.accepts.Load() != 0 {
		t.Log("denied target must not be dialed")
		t.Fail()
	}

	_, addr = startServer(t, ws_tunnel.ServerConf{UUID: testUUID}, nil)
	c = dialWs(t, addr, "/ws", vlessHeader(testUUID, 1, localhost, freePort(t), []byte("x")))
	if code := readCloseCode(c); code != gws.StatusInternalServerError {
		t.Log(code)
		t.Fail()
	}
}

func TestRejects(t *testing.T) {
	_, addr := startServer(t, ws_tunnel.ServerConf{UUID: testUUID}, nil)

	c := dialWs(t, addr, "/ws", vlessHeader(wrongUUID, 1, localhost, 80, nil))
	if code := readCloseCode(c); code != gws.StatusPolicyViolation {
		t.Log("wrong uuid", code)
		t.Fail()
	}

	c = dialWs(t, addr, "/ws", []byte{9, 9, 9})
	if code := readCloseCode(c); code != gws.StatusInvalidFramePayloadData {
		t.Log("garbage", code)
		t.Fail()
	}

	c = dialWs(t, addr, "/ws", vlessHeader(testUUID, 3, localhost, 80, nil))
	if code := readCloseCode(c); code != gws.StatusUnsupportedData {
		t.Log("mux command", code)
		t.Fail()
	}

	if _, err := tryDialWs(addr, "/not-a-path", nil); err == nil {
		t.Log("wrong path should be rejected")
		t.Fail()
	}
}

func TestServerClose(t *testing.T) {
	echo := startTarget(t, nil)
	s, addr := startServer(t, ws_tunnel.ServerConf{UUID: testUUID}, nil)

	c := dialWs(t, addr, "/ws", vlessHeader(testUUID, 1, localhost, echo.port, []byte("a")))
	readMsg(t, c)

	if s.ActiveSessions() != 1 {
		t.Log(s.ActiveSessions())
		t.Fail()
	}

	go s.Close()
	if code := readCloseCode(c); code != gws.StatusGoingAway {
		t.Log(code)
		t.Fail()
	}
}

// 停止服务 与 头部解析 同时发生时, 每个会话都要被关闭.
func TestServerCloseWhileParsing(t *testing.T) {
	echo := startTarget(t, nil)
	s, addr := startServer(t, ws_tunnel.ServerConf{UUID: testUUID}, nil)

	var clients []*ws.Conn
	for i := 0; i < 8; i++ {
		clients = append(clients, dialWs(t, addr, "/ws", nil))
	}

	header := vlessHeader(testUUID, 1, localhost, echo.port, []byte("a"))
	for _, c := range clients {
		go c.Write(header)
	}
	s.Close()

	if n := s.ActiveSessions(); n != 0 {
		t.Log("active", n)
		t.Fail()
	}
	for i, c := range clients {
		if code := readCloseCode(c); code != gws.StatusGoingAway && code != gws.StatusInternalServerError {
			t.Log(i, code)
			t.Fail()
		}
	}
}
