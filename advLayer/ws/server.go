package ws

import (
	"bytes"
	"net"
	"net/http"
	"strings"

	"github.com/e1732a364fed/ws_tunnel/utils"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"
)

type Server struct {
	// Accept 过滤 path (不含 query 部分). 为nil 时 接受所有path.
	Accept func(path string) bool

	UseEarlyData bool

	MaxMessageSize int64
}

func NewServer(accept func(path string) bool, useEarlyData bool) *Server {
	return &Server{
		Accept:         accept,
		UseEarlyData:   useEarlyData,
		MaxMessageSize: DefaultMaxMessageSize,
	}
}

// Handshake 用于 websocket的 Server 监听端，建立握手. 用到了 gobwas/ws.Upgrader.
//
// 返回可直接用于读写 websocket 二进制消息的 Conn, 以及 请求的 path.
// path 不符合时 客户只会看到一个标准的 400, path 信息不会被显示出去.
func (s *Server) Handshake(underlay net.Conn) (*Conn, string, error) {
	var thePath string
	var pathRejected bool
	var thePotentialEarlyData []byte
	var forwardedFor string

	theUpgrader := &ws.Upgrader{

		// 我们先统一监听tcp；然后再调用Handshake函数,
		// 所以不能直接用http.Handle. OnRequest 专门用于过滤 path.
		OnRequest: func(uri []byte) error {
			struri := string(uri)
			if i := strings.IndexByte(struri, '?'); i >= 0 {
				struri = struri[:i]
			}
			thePath = struri

			if s.Accept != nil && !s.Accept(struri) {
				pathRejected = true

				//这个错误的内容会被直接显示到浏览器上, 所以只能返回标准http错误
				return ws.RejectConnectionError(ws.RejectionStatus(http.StatusBadRequest))
			}
			return nil
		},

		OnHeader: func(key, value []byte) error {
			if bytes.EqualFold(key, []byte("X-Forwarded-For")) {
				forwardedFor = string(value)
			}
			return nil
		},
	}

	if s.UseEarlyData {

		// xray和v2ray中，使用了 header中的 Sec-WebSocket-Protocol 字段 来传输 earlydata，我们为了兼容同样用此字段

		// 我们若提供了此函数，则必须返回true，否则 gobwas会返回 ErrMalformedRequest 错误.
		// 解码失败时 也返回true, 此时只是没有 earlydata 而已
		theUpgrader.ProtocolCustom = func(b []byte) (string, bool) {
			thePotentialEarlyData = DecodeEarlyData(string(b))
			if len(thePotentialEarlyData) == 0 {
				return "", true
			}

			//原样返回, 否则一些客户端 (比如浏览器) 会认为握手失败
			return string(b), true
		}
	}

	_, err := theUpgrader.Upgrade(underlay)
	if err != nil {
		if pathRejected {
			if ce := utils.CanLogWarn("ws path not match"); ce != nil {
				ce.Write(zap.String("path", thePath), zap.String("from", underlay.RemoteAddr().String()))
			}
			return nil, thePath, utils.ErrInErr{ErrDesc: "ws path not match", ErrDetail: ErrPathRejected, Data: thePath}
		}
		return nil, thePath, utils.ErrInErr{ErrDesc: "ws upgrade failed", ErrDetail: err}
	}

	theConn := &Conn{
		Conn:           underlay,
		state:          ws.StateServerSide,
		r:              wsutil.NewServerSideReader(underlay),
		MaxMessageSize: s.MaxMessageSize,
	}
	theConn.r.OnIntermediate = theConn.handleIntermediate

	if len(thePotentialEarlyData) > 0 {
		theConn.earlyData = thePotentialEarlyData
	}

	if forwardedFor != "" {
		first := strings.TrimSpace(strings.Split(forwardedFor, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			theConn.realRaddr = &net.TCPAddr{IP: ip}
		}
	}

	return theConn, thePath, nil
}
