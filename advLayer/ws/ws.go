/*
Package ws implements the websocket layer of ws_tunnel.

# Reference

websocket rfc: https://datatracker.ietf.org/doc/html/rfc6455/

Below is a real websocket handshake progress:

Request

	GET /chat HTTP/1.1
	    Host: server.example.com
	    Upgrade: websocket
	    Connection: Upgrade
	    Sec-WebSocket-Key: x3JJHMbDL1EzLkh9GBhXDw==
	    Sec-WebSocket-Protocol: chat, superchat
	    Sec-WebSocket-Version: 13
	    Origin: http://example.com

Response

	HTTP/1.1 101 Switching Protocols
	    Upgrade: websocket
	    Connection: Upgrade
	    Sec-WebSocket-Accept: HSmrc0sMlYUkAGmm5OPpG2HaGWk=
	    Sec-WebSocket-Protocol: chat

We use gobwas/ws, it lets us upgrade directly on a raw tcp conn that we accepted ourselves,
without going through net/http.

gobwas包只支持http1.1, 所以如果使用nginx前置，确保 proxy_http_version 1.1;

# Early data

客户端可以把 内层协议的第一段数据 用 base64url 编码后 放进 Sec-WebSocket-Protocol 头里 一起发送 (0-rtt).
服务端解码后 把它作为 第一条消息, 先于 握手后收到的所有帧 交给上层.
*/
package ws

import (
	"encoding/base64"
	"strings"
)

// 2048 /3 = 682.6666...  (682 又 三分之二),
// 683 * 4 = 2732, 你若不信，运行 ws_test.go中的 TestBase64Len
const MaxEarlyDataLen_Base64 = 2732
const MaxEarlyDataLen = 2048

// 默认的单条消息 上限. 我们的标准Packet缓存是64k
const DefaultMaxMessageSize = 64 * 1024

var urlToStdReplacer = strings.NewReplacer("-", "+", "_", "/")

// DecodeEarlyData 解码 Sec-WebSocket-Protocol 里的 earlydata.
// 标准 base64 与 base64url 两种字母表都接受, 末尾的 '=' 可有可无.
// 为空, 过长, 或者 不是合法的base64 时 返回 nil, 而不是错误.
func DecodeEarlyData(s string) []byte {
	if s == "" || len(s) > MaxEarlyDataLen_Base64 {
		return nil
	}
	s = urlToStdReplacer.Replace(strings.TrimRight(s, "="))

	bs, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil || len(bs) > MaxEarlyDataLen {
		return nil
	}
	return bs
}

// EncodeEarlyData 是 DecodeEarlyData 的逆操作, 客户端使用.
func EncodeEarlyData(bs []byte) string {
	return base64.RawURLEncoding.EncodeToString(bs)
}
