package ws_tunnel

import (
	"github.com/e1732a364fed/ws_tunnel/proxy"

	_ "github.com/e1732a364fed/ws_tunnel/proxy/shadowsocks"
	_ "github.com/e1732a364fed/ws_tunnel/proxy/trojan"
	_ "github.com/e1732a364fed/ws_tunnel/proxy/vless"
)

// Protocols 返回 所有编译进来的协议名.
func Protocols() (names []string) {
	for _, p := range proxy.RegisteredProtocols() {
		names = append(names, p.String())
	}
	return
}
