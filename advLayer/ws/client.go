package ws

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Client 只是在tcp 的基础上包了一层websocket而已, 不管内层协议的内容.
// 服务端本身不需要它; 它用于测试 与 简单的命令行探测.
type Client struct {
	requestURL *url.URL
}

// 这里默认，传入的path必须 以 "/" 为前缀. 本函数 不对此进行任何检查
func NewClient(hostAddr, path string) (*Client, error) {
	u, err := url.Parse("ws://" + hostAddr + path)
	if err != nil {
		return nil, err
	}
	return &Client{
		requestURL: u,
	}, nil
}

// Handshake 与服务端进行 websocket握手. earlyData 非空时 会被放进 Sec-WebSocket-Protocol 头.
func (c *Client) Handshake(ctx context.Context, underlay net.Conn, earlyData []byte) (*Conn, error) {
	d := ws.Dialer{
		NetDial: func(ctx context.Context, net, addr string) (net.Conn, error) {
			return underlay, nil
		},
	}
	if len(earlyData) > 0 {
		d.Protocols = []string{EncodeEarlyData(earlyData)}
	}

	if deadline, ok := ctx.Deadline(); ok {
		underlay.SetDeadline(deadline)
		defer underlay.SetDeadline(time.Time{})
	}

	br, _, err := d.Upgrade(underlay, c.requestURL)
	if err != nil {
		return nil, err
	}

	theConn := &Conn{
		Conn:  underlay,
		state: ws.StateClientSide,
	}

	// 根据 gobwas/ws的代码，在服务器没有返回任何数据时，br为nil.
	// 服务器回复得够快的话 握手的回复后面可能紧跟着数据帧, 要把它们拼回来
	var src io.Reader = underlay
	if br != nil {
		peeked, _ := br.Peek(br.Buffered())
		bs := append([]byte(nil), peeked...)
		src = io.MultiReader(bytes.NewReader(bs), underlay)
		ws.PutReader(br)
	}

	theConn.r = wsutil.NewClientSideReader(src)
	theConn.r.OnIntermediate = theConn.handleIntermediate

	return theConn, nil
}
