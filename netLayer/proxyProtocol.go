package netLayer

import (
	"net"
	"time"

	"github.com/pires/go-proxyproto"
)

var proxyProtocolListenPolicyFunc = func(upstream net.Addr) (proxyproto.Policy, error) { return proxyproto.REQUIRE, nil }

// PROXY protocol。
// Reference： http://www.haproxy.org/download/1.8/doc/proxy-protocol.txt
//
// 我们的 ws 服务 常放在 nginx/haproxy 或 负载均衡 之后, 此时只有通过 PROXY protocol 才能拿到客户的真实ip,
// 用于日志. 开启后 所有连接都必须带有 PROXY 头 (v1 或 v2 均可), 否则会被拒绝.
func ListenWithPROXYprotocol(l net.Listener) net.Listener {
	return &proxyproto.Listener{
		Listener:          l,
		Policy:            proxyProtocolListenPolicyFunc,
		ReadHeaderTimeout: time.Second * 5,
	}
}
