package netLayer

import (
	"io"
	"strconv"

	"github.com/e1732a364fed/ws_tunnel/utils"
)

// 很多部署环境 根本没有 udp 出站, 所以udp数据报 (基本上都是dns) 被包进 一条到 udp中继服务器的 tcp 连接里.
//
// 每一个数据报 写成一条消息:
//
//	"udp:" + 目标地址 + ":" + 目标端口 + "|" + 数据报原始数据
//
// 中继的回复 不带任何头部, 直接原样转发给客户.
const RelayHeaderSeparator byte = 0x7C

// WriteRelayDatagram 将一个数据报 编码后 用一次 Write 写入 w.
func WriteRelayDatagram(w io.Writer, targetHost string, targetPort int, datagram []byte) error {
	buf := utils.GetBuf()
	defer utils.PutBuf(buf)

	buf.WriteString("udp:")
	buf.WriteString(targetHost)
	buf.WriteByte(':')
	buf.WriteString(strconv.Itoa(targetPort))
	buf.WriteByte(RelayHeaderSeparator)
	buf.Write(datagram)

	_, err := w.Write(buf.Bytes())
	return err
}
