package proxy

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/shadowsocks/go-shadowsocks2/socks"
)

// DecodeAddress 从 buf[off:] 读取 类型为 t 的地址, 返回地址字符串 与 地址之后的位置.
//
// ipv4 写成 点分十进制; 域名 为 1字节长度 + 内容, 长度为0 视为错误;
// ipv6 写成 8组 小写16进制, 不做零压缩, 比如 全零地址为 0:0:0:0:0:0:0:0
func DecodeAddress(buf []byte, off int, t AddressType) (addr string, next int, err error) {
	if off < 0 || off > len(buf) {
		return "", off, parseErr("address", ErrShortHeader)
	}
	switch t {
	case AddrIPv4:
		if off+4 > len(buf) {
			return "", off, parseErr("address", ErrShortHeader)
		}
		b := buf[off : off+4]
		addr = strconv.Itoa(int(b[0])) + "." + strconv.Itoa(int(b[1])) + "." + strconv.Itoa(int(b[2])) + "." + strconv.Itoa(int(b[3]))
		next = off + 4

	case AddrDomain:
		if off+1 > len(buf) {
			return "", off, parseErr("address", ErrShortHeader)
		}
		l := int(buf[off])
		if l == 0 {
			return "", off, parseErr("address", ErrEmptyAddress)
		}
		if off+1+l > len(buf) {
			return "", off, parseErr("address", ErrShortHeader)
		}
		addr = string(buf[off+1 : off+1+l])
		next = off + 1 + l

	case AddrIPv6:
		if off+16 > len(buf) {
			return "", off, parseErr("address", ErrShortHeader)
		}
		parts := make([]string, 8)
		for i := 0; i < 8; i++ {
			parts[i] = strconv.FormatUint(uint64(binary.BigEndian.Uint16(buf[off+2*i:])), 16)
		}
		addr = strings.Join(parts, ":")
		next = off + 16

	default:
		return "", off, parseErr("address type", ErrBadAddrType)
	}
	return
}

// ReadPort 读取 buf[off:off+2] 的大端序端口.
func ReadPort(buf []byte, off int) (port uint16, next int, err error) {
	if off < 0 || off+2 > len(buf) {
		return 0, off, parseErr("port", ErrShortHeader)
	}
	return binary.BigEndian.Uint16(buf[off:]), off + 2, nil
}

// SocksAddrType 将 trojan / shadowsocks 所用的 socks5 风格 地址类型字节 (1/3/4) 转换为 AddressType.
func SocksAddrType(b byte) (AddressType, bool) {
	switch b {
	case 1:
		return AddrIPv4, true
	case 3:
		return AddrDomain, true
	case 4:
		return AddrIPv6, true
	}
	return 0, false
}

// ParseSocksAddr 解析 buf[off:] 处 trojan / shadowsocks 所用的 socks5 风格地址 ATYP DST.ADDR DST.PORT.
// 地址的长度 由 socks.SplitAddr 划定, next 为 端口之后的位置.
func ParseSocksAddr(buf []byte, off int) (t AddressType, addr string, port uint16, next int, err error) {
	next = off
	if off < 0 || off >= len(buf) {
		err = parseErr("address type", ErrShortHeader)
		return
	}
	var ok bool
	if t, ok = SocksAddrType(buf[off]); !ok {
		err = parseErr("address type", ErrBadAddrType)
		return
	}
	sa := socks.SplitAddr(buf[off:])
	if sa == nil {
		err = parseErr("address", ErrShortHeader)
		return
	}
	portAt := len(sa) - 2
	if addr, _, err = DecodeAddress(sa[:portAt], 1, t); err != nil {
		return
	}
	port = binary.BigEndian.Uint16(sa[portAt:])
	next = off + len(sa)
	return
}
