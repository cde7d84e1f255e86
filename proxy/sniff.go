package proxy

import "github.com/e1732a364fed/ws_tunnel/utils"

const (
	trojanHashLen   = 56
	trojanMinSniff  = 62
	vlessUUIDOffset = 1
)

// Sniff 只根据 第一条消息的前62字节 判断协议, 按固定顺序:
//
//	trojan: 至少62字节, 56,57 为 CRLF, 58 为命令 (1,3,0x7f), 59 为地址类型 (1,3,4)
//	vless: 1到16字节 符合 v4 uuid 的结构
//	其余一律视为 shadowsocks
func Sniff(chunk []byte) Protocol {
	if len(chunk) >= trojanMinSniff && chunk[trojanHashLen] == '\r' && chunk[trojanHashLen+1] == '\n' {
		switch chunk[trojanHashLen+2] {
		case 0x01, 0x03, 0x7f:
			switch chunk[trojanHashLen+3] {
			case 0x01, 0x03, 0x04:
				return Trojan
			}
		}
	}

	if len(chunk) >= vlessUUIDOffset+utils.UUID_BytesLen && utils.IsUUIDv4Pattern(chunk[vlessUUIDOffset:vlessUUIDOffset+utils.UUID_BytesLen]) {
		return Vless
	}

	return Shadowsocks
}
