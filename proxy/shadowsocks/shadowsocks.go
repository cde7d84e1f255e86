/*
Package shadowsocks implements proxy.Parser for the plain (no cipher) shadowsocks request header.

Reference

https://github.com/shadowsocks/shadowsocks-org/wiki/Protocol

头部就是 socks5 风格的地址:

	ATYP(1) DST.ADDR DST.PORT(2) Payload

ss 的标准里 没有哪一项 可以指定 tcp/udp, 所以我们约定 目标端口为53 时 视为 udp (dns), 其余都是 tcp.
*/
package shadowsocks

import (
	"github.com/e1732a364fed/ws_tunnel/proxy"
)

const Name = "shadowsocks"

const DNSPort = 53

func init() {
	proxy.RegisterParser(proxy.Shadowsocks, NewParser)
}

type Parser struct{}

func NewParser(*proxy.ParserConf) (proxy.Parser, error) {
	return Parser{}, nil
}

func (Parser) Protocol() proxy.Protocol {
	return proxy.Shadowsocks
}

func (Parser) Parse(chunk []byte) (*proxy.RequestHeader, error) {
	h := &proxy.RequestHeader{Command: proxy.CmdConnectTCP}

	var err error
	if h.AddrType, h.Address, h.Port, h.PayloadOffset, err = proxy.ParseSocksAddr(chunk, 0); err != nil {
		return nil, err
	}
	if h.Port == DNSPort {
		h.Command = proxy.CmdAssociateUDP
	}
	return h, nil
}
