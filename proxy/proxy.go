package proxy

import (
	"strconv"

	"github.com/e1732a364fed/ws_tunnel/netLayer"
)

type Protocol int

const (
	ProtocolUnknown Protocol = iota
	Trojan
	Vless
	Shadowsocks
)

func (p Protocol) String() string {
	switch p {
	case Trojan:
		return "trojan"
	case Vless:
		return "vless"
	case Shadowsocks:
		return "shadowsocks"
	}
	return "unknown"
}

// Command 是 统一后的 命令, 各协议自己的命令字节 在解析时 被转换成它.
type Command byte

const (
	CmdConnectTCP Command = iota + 1
	CmdAssociateUDP
)

func (c Command) String() string {
	switch c {
	case CmdConnectTCP:
		return "tcp"
	case CmdAssociateUDP:
		return "udp"
	}
	return "unknown"
}

// AddressType 是 统一后的地址类型. 注意 各协议在线上用的字节值 并不相同:
// trojan 与 shadowsocks 用 1/3/4, vless 用 1/2/3.
type AddressType byte

const (
	AddrIPv4 AddressType = iota + 1
	AddrDomain
	AddrIPv6
)

// RequestHeader 是 一个已经通过验证的 协议请求头.
type RequestHeader struct {
	Command  Command
	AddrType AddressType
	Address  string
	Port     uint16

	// 第一条消息中 头部之后的 载荷 的起始位置
	PayloadOffset int

	// 需要在 返回给客户的第一条消息前 加上的字节, 没有则为nil
	ResponsePrefix []byte
}

func (h *RequestHeader) IsUDP() bool {
	return h.Command == CmdAssociateUDP
}

// Payload 返回 chunk 中 头部之后的部分. chunk 必须是 解析出 h 的那一段数据.
func (h *RequestHeader) Payload(chunk []byte) []byte {
	if h.PayloadOffset >= len(chunk) {
		return nil
	}
	return chunk[h.PayloadOffset:]
}

func (h *RequestHeader) Addr() netLayer.Addr {
	a := netLayer.NewAddrFromHostPort(h.Address, int(h.Port))
	if h.IsUDP() {
		a.Network = "udp"
	} else {
		a.Network = "tcp"
	}
	return a
}

func (h *RequestHeader) String() string {
	return h.Command.String() + "://" + h.Address + ":" + strconv.Itoa(int(h.Port))
}
