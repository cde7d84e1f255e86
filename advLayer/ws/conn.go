package ws

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/e1732a364fed/ws_tunnel/utils"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

var (
	ErrPathRejected    = errors.New("ws path rejected")
	ErrMessageTooLarge = errors.New("ws message too large")
	ErrNotBinary       = errors.New("ws OpCode not OpBinary/OpContinuation")
)

// Conn 包装 gobwas/ws 的底层连接, 以消息为单位 读写 二进制数据.
//
// 读只能在一个goroutine 中进行; 写 可以并发, 每次写都是一个完整的帧.
type Conn struct {
	net.Conn

	state ws.State
	r     *wsutil.Reader

	wmu       sync.Mutex
	closeOnce sync.Once

	earlyData []byte

	// 每条消息的上限, <=0 表示不限制
	MaxMessageSize int64

	inMessage bool

	realRaddr net.Addr //可从 X-Forwarded-For 读取用户真实ip，用于反代等情况
}

// ReadMessage 读取一条完整的 二进制消息 (可能由多个分片组成).
// 如果握手时带有 earlydata, 第一次调用返回的就是它.
//
// 控制帧在内部处理: ping 会自动回复 pong, close 会返回 wsutil.ClosedError.
func (c *Conn) ReadMessage() ([]byte, error) {
	if c.earlyData != nil {
		bs := c.earlyData
		c.earlyData = nil
		return bs, nil
	}

	var msg []byte
	c.inMessage = false
	for {
		h, err := c.r.NextFrame()
		if err != nil {
			return nil, err
		}

		if h.OpCode.IsControl() {
			if c.inMessage {
				// 分片中间的控制帧 已经在 OnIntermediate 里被处理了
				continue
			}
			if err = c.handleControl(h, c.r); err != nil {
				return nil, err
			}
			continue
		}

		if h.OpCode != ws.OpBinary && h.OpCode != ws.OpContinuation {
			return nil, utils.ErrInErr{ErrDesc: ErrNotBinary.Error(), ErrDetail: ErrNotBinary, Data: h.OpCode}
		}

		if c.MaxMessageSize > 0 && int64(len(msg))+h.Length > c.MaxMessageSize {
			return nil, utils.ErrInErr{ErrDesc: ErrMessageTooLarge.Error(), ErrDetail: ErrMessageTooLarge, Data: int64(len(msg)) + h.Length}
		}

		start := len(msg)
		msg = append(msg, make([]byte, h.Length)...)
		if err = c.readPayload(msg[start:], h.Fin); err != nil {
			return nil, err
		}

		if h.Fin {
			c.inMessage = false
			return msg, nil
		}
		c.inMessage = true
	}
}

// 读完当前帧. 最后一次 Read 会返回 io.EOF, 这是 wsutil.Reader 标记帧结束的方式, 不是错误.
//
// 空的非末尾分片 不能去读: 分片状态下 wsutil.Reader 会自动前进到下一帧, 把后续分片的数据吞掉.
func (c *Conn) readPayload(p []byte, fin bool) error {
	if len(p) == 0 {
		if !fin {
			return nil
		}
		_, err := io.Copy(io.Discard, c.r)
		return err
	}
	_, err := io.ReadFull(c.r, p)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

func (c *Conn) handleIntermediate(h ws.Header, r io.Reader) error {
	return c.handleControl(h, r)
}

func (c *Conn) handleControl(h ws.Header, r io.Reader) error {
	payload, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	switch h.OpCode {
	case ws.OpPing:
		c.wmu.Lock()
		defer c.wmu.Unlock()
		return c.writeFrame(ws.OpPong, payload)

	case ws.OpClose:
		code, reason := ws.ParseCloseFrameData(payload)
		return wsutil.ClosedError{Code: code, Reason: reason}
	}
	return nil
}

// 调用者必须持有 wmu
func (c *Conn) writeFrame(op ws.OpCode, p []byte) error {
	if c.state == ws.StateClientSide {
		return wsutil.WriteClientMessage(c.Conn, op, p)
	}
	return wsutil.WriteServerMessage(c.Conn, op, p)
}

// Write 将 p 写为一个完整的 二进制帧.
func (c *Conn) Write(p []byte) (n int, e error) {
	c.wmu.Lock()
	e = c.writeFrame(ws.OpBinary, p)
	c.wmu.Unlock()
	if e == nil {
		n = len(p)
	}
	return
}

// WriteBuffers 将所有 buffers 合并写为 一个二进制帧. 服务端 可以直接连续写入 而不必拷贝.
func (c *Conn) WriteBuffers(buffers [][]byte) (int64, error) {
	allLen := 0
	for _, b := range buffers {
		allLen += len(b)
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.state == ws.StateClientSide {
		//客户端要 mask 数据, 只能先合并
		bigbs := make([]byte, 0, allLen)
		for _, b := range buffers {
			bigbs = append(bigbs, b...)
		}
		return int64(allLen), c.writeFrame(ws.OpBinary, bigbs)
	}

	wsH := ws.Header{
		Fin:    true,
		OpCode: ws.OpBinary,
		Length: int64(allLen),
	}
	if e := ws.WriteHeader(c.Conn, wsH); e != nil {
		return 0, e
	}

	nb := net.Buffers(buffers)
	return nb.WriteTo(c.Conn)
}

// CloseWithCode 发送 close 帧 然后关闭底层连接. 可以多次调用, 只有第一次有效.
func (c *Conn) CloseWithCode(code ws.StatusCode, reason string) (err error) {
	c.closeOnce.Do(func() {
		c.wmu.Lock()
		c.writeFrame(ws.OpClose, ws.NewCloseFrameBody(code, reason))
		c.wmu.Unlock()

		err = c.Conn.Close()
	})
	return
}

func (c *Conn) Close() error {
	return c.CloseWithCode(ws.StatusNormalClosure, "")
}

func (c *Conn) RemoteAddr() net.Addr {
	if c.realRaddr != nil {
		return c.realRaddr
	}
	return c.Conn.RemoteAddr()
}
