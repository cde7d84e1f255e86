// Package trojan implements proxy.Parser for the trojan protocol header.
//
// See https://trojan-gfw.github.io/trojan/protocol .
//
//	+-----------------------+---------+----------------+---------+----------+
//	| hex(SHA224(password)) |  CRLF   | Trojan Request |  CRLF   | Payload  |
//	+-----------------------+---------+----------------+---------+----------+
//	|          56           | X'0D0A' |    Variable    | X'0D0A' | Variable |
//	+-----------------------+---------+----------------+---------+----------+
//
// Trojan Request 为 CMD(1) ATYP(1) DST.ADDR DST.PORT(2), 与 socks5 相同.
package trojan

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/e1732a364fed/ws_tunnel/proxy"
)

const Name = "trojan"

const (
	CmdConnect      = 0x01
	CmdUDPAssociate = 0x03
	CmdMux          = 0x7f //trojan-go 的 mux, 我们不支持
)

const (
	hashLen      = 56
	cmdOffset    = hashLen + 2
	minAfterCRLF = 6
)

func init() {
	proxy.RegisterParser(proxy.Trojan, NewParser)
}

// trojan 的前56字节 是 sha224的28字节 每字节 转义成 ascii的 表示16进制的 两个字符
func SHA224_hexStringBytes(password string) []byte {
	sum := sha256.Sum224([]byte(password))
	dst := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(dst, sum[:])
	return dst
}

type Parser struct {
	passwordHash []byte //为nil时 不检查
}

func NewParser(conf *proxy.ParserConf) (proxy.Parser, error) {
	p := &Parser{}
	if conf != nil && conf.TrojanPassword != "" {
		p.passwordHash = SHA224_hexStringBytes(conf.TrojanPassword)
	}
	return p, nil
}

func (*Parser) Protocol() proxy.Protocol {
	return proxy.Trojan
}

func (p *Parser) Parse(chunk []byte) (*proxy.RequestHeader, error) {
	if len(chunk) < cmdOffset+minAfterCRLF {
		return nil, proxy.NewErr(proxy.KindProtocolParse, "header", proxy.ErrShortHeader)
	}

	if p.passwordHash != nil && subtle.ConstantTimeCompare(chunk[:hashLen], p.passwordHash) != 1 {
		return nil, proxy.NewErr(proxy.KindAuthentication, "password", proxy.ErrHashMismatch)
	}

	if chunk[hashLen] != '\r' || chunk[hashLen+1] != '\n' {
		return nil, proxy.NewErr(proxy.KindProtocolParse, "crlf", nil)
	}

	h := &proxy.RequestHeader{}

	switch chunk[cmdOffset] {
	case CmdConnect:
		h.Command = proxy.CmdConnectTCP
	case CmdUDPAssociate:
		h.Command = proxy.CmdAssociateUDP
	default:
		return nil, proxy.NewErr(proxy.KindUnsupportedCommand, "command", nil)
	}

	var err error
	var off int
	if h.AddrType, h.Address, h.Port, off, err = proxy.ParseSocksAddr(chunk, cmdOffset+1); err != nil {
		return nil, err
	}

	if off+2 > len(chunk) {
		return nil, proxy.NewErr(proxy.KindProtocolParse, "crlf", proxy.ErrShortHeader)
	}
	h.PayloadOffset = off + 2

	return h, nil
}
