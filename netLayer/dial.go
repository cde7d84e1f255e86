package netLayer

import (
	"context"
	"net"
	"time"
)

const DefaultDialTimeout = time.Second * 8 //v2ray默认16秒，是不是太长了？？

// DialTimeout 是所有出站 tcp 拨号的超时; 超时即视为拨号失败.
var DialTimeout = DefaultDialTimeout

// Dial 以 tcp 拨号. ctx 被取消时拨号立即中止.
func (addr Addr) Dial(ctx context.Context) (net.Conn, error) {
	network := addr.Network
	if network == "" || addr.IsUDP() {
		//udp 在本作中只通过 tcp 中继 或 DoH 承载, 不存在直接的udp拨号
		network = "tcp"
	}

	dialer := &net.Dialer{
		Timeout: DialTimeout,
	}

	return dialer.DialContext(ctx, network, addr.String())
}
