/*
Package vless implements proxy.Parser for the vless protocol request header.

Reference

https://github.com/XTLS/Xray-core/discussions/716

我们支持 两种 头部布局, 它们只在 命令之后的部分 有所不同:

port_first, 即 标准 vless:

	ver(1) uuid(16) optLen(1) opt(optLen) cmd(1) port(2) atyp(1) addr

addr_first:

	ver(1) uuid(16) optLen(1) opt(optLen) cmd(1) reserved(1) atyp(1) addr port(2)

两种布局中 atyp 都是 1 ipv4, 2 域名, 3 ipv6. 服务端回复的头部 都是 [ver, 0].

uuid 总是最先被检查, 所以 uuid 错误 一定会得到 认证错误 而不是 解析错误.
*/
package vless

import (
	"crypto/subtle"

	"github.com/e1732a364fed/ws_tunnel/proxy"
	"github.com/e1732a364fed/ws_tunnel/utils"
)

const Name = "vless"

const (
	LayoutPortFirst = "port_first"
	LayoutAddrFirst = "addr_first"
)

const (
	CmdTCP byte = 0x01
	CmdUDP byte = 0x02
)

const (
	ATypIP4    byte = 0x01
	ATypDomain byte = 0x02
	ATypIP6    byte = 0x03
)

const (
	uuidOffset   = 1
	optLenOffset = uuidOffset + utils.UUID_BytesLen

	addrFirstMinLen = 22
)

func init() {
	proxy.RegisterParser(proxy.Vless, NewParser)
}

type Parser struct {
	layout  string
	uuid    [utils.UUID_BytesLen]byte
	hasUUID bool
}

func NewParser(conf *proxy.ParserConf) (proxy.Parser, error) {
	p := &Parser{layout: LayoutPortFirst}
	if conf == nil {
		return p, nil
	}
	p.uuid = conf.UUID
	p.hasUUID = conf.HasUUID

	switch conf.VlessLayout {
	case "", LayoutPortFirst:
	case LayoutAddrFirst:
		if !p.hasUUID {
			return nil, utils.ErrInErr{ErrDesc: "vless addr_first layout requires uuid", ErrDetail: proxy.ErrMissingConfig}
		}
		p.layout = LayoutAddrFirst
	default:
		return nil, utils.ErrInErr{ErrDesc: "unknown vless layout", ErrDetail: utils.ErrWrongParameter, Data: conf.VlessLayout}
	}
	return p, nil
}

func (*Parser) Protocol() proxy.Protocol {
	return proxy.Vless
}

func (p *Parser) Layout() string {
	return p.layout
}

func (p *Parser) Parse(chunk []byte) (*proxy.RequestHeader, error) {
	if len(chunk) < optLenOffset {
		return nil, proxy.NewErr(proxy.KindProtocolParse, "uuid", proxy.ErrShortHeader)
	}

	if p.hasUUID && subtle.ConstantTimeCompare(chunk[uuidOffset:optLenOffset], p.uuid[:]) != 1 {
		return nil, proxy.NewErr(proxy.KindAuthentication, "uuid", proxy.ErrUUIDMismatch)
	}
	if chunk[0] != 0 {
		return nil, proxy.NewErr(proxy.KindAuthentication, "version", proxy.ErrBadVersion)
	}

	var h *proxy.RequestHeader
	var err error
	if p.layout == LayoutAddrFirst {
		h, err = parseAddrFirst(chunk)
	} else {
		h, err = parsePortFirst(chunk)
	}
	if err != nil {
		return nil, err
	}
	h.ResponsePrefix = []byte{chunk[0], 0}
	return h, nil
}

// 读取 optLen 并跳过 附加信息, 返回 命令所在的位置
func skipOptions(chunk []byte) (int, error) {
	if len(chunk) <= optLenOffset {
		return 0, proxy.NewErr(proxy.KindProtocolParse, "options length", proxy.ErrShortHeader)
	}
	off := optLenOffset + 1 + int(chunk[optLenOffset])
	if off >= len(chunk) {
		return 0, proxy.NewErr(proxy.KindProtocolParse, "command", proxy.ErrShortHeader)
	}
	return off, nil
}

func command(b byte) (proxy.Command, error) {
	switch b {
	case CmdTCP:
		return proxy.CmdConnectTCP, nil
	case CmdUDP:
		return proxy.CmdAssociateUDP, nil
	}
	return 0, proxy.NewErr(proxy.KindUnsupportedCommand, "command", nil)
}

func addrType(b byte) (proxy.AddressType, error) {
	switch b {
	case ATypIP4:
		return proxy.AddrIPv4, nil
	case ATypDomain:
		return proxy.AddrDomain, nil
	case ATypIP6:
		return proxy.AddrIPv6, nil
	}
	return 0, proxy.NewErr(proxy.KindProtocolParse, "address type", proxy.ErrBadAddrType)
}

func parsePortFirst(chunk []byte) (h *proxy.RequestHeader, err error) {
	off, err := skipOptions(chunk)
	if err != nil {
		return
	}
	h = &proxy.RequestHeader{}
	if h.Command, err = command(chunk[off]); err != nil {
		return nil, err
	}
	if h.Port, off, err = proxy.ReadPort(chunk, off+1); err != nil {
		return nil, err
	}
	if off >= len(chunk) {
		return nil, proxy.NewErr(proxy.KindProtocolParse, "address type", proxy.ErrShortHeader)
	}
	if h.AddrType, err = addrType(chunk[off]); err != nil {
		return nil, err
	}
	if h.Address, off, err = proxy.DecodeAddress(chunk, off+1, h.AddrType); err != nil {
		return nil, err
	}
	h.PayloadOffset = off
	return h, nil
}

func parseAddrFirst(chunk []byte) (h *proxy.RequestHeader, err error) {
	if len(chunk) < addrFirstMinLen {
		return nil, proxy.NewErr(proxy.KindProtocolParse, "header", proxy.ErrShortHeader)
	}
	off, err := skipOptions(chunk)
	if err != nil {
		return
	}
	if off+3 > len(chunk) {
		return nil, proxy.NewErr(proxy.KindProtocolParse, "address type", proxy.ErrShortHeader)
	}
	h = &proxy.RequestHeader{}
	if h.Command, err = command(chunk[off]); err != nil {
		return nil, err
	}
	//off+1 是保留字节
	if h.AddrType, err = addrType(chunk[off+2]); err != nil {
		return nil, err
	}
	if h.Address, off, err = proxy.DecodeAddress(chunk, off+3, h.AddrType); err != nil {
		return nil, err
	}
	if h.Port, off, err = proxy.ReadPort(chunk, off); err != nil {
		return nil, err
	}
	h.PayloadOffset = off
	return h, nil
}
