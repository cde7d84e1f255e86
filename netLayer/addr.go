package netLayer

import (
	"net"
	"strconv"

	"github.com/e1732a364fed/ws_tunnel/utils"
)

// Addr represents a address that you want to access by proxy. Either Name or IP is used exclusively.
// Addr完整地表示了一个 传输层的目标，同时用 Network 字段 来记录网络层协议名
type Addr struct {
	Network string
	Name    string // domain name
	IP      net.IP
	Port    int
}

// NewAddrFromHostPort 将 host 与 port 组装成 Addr; host 为 ip 时填充 IP, 否则填充 Name.
// 注意ipv6的 host 可以是我们协议解析得到的 不压缩的写法 (比如 0:0:0:0:0:0:0:1), net.ParseIP 可以处理.
func NewAddrFromHostPort(host string, port int) Addr {
	a := Addr{Port: port}
	if ip := net.ParseIP(host); ip != nil {
		a.IP = ip
	} else {
		a.Name = host
	}
	return a
}

// hostPortStr格式 必须为 host:port
func NewAddrByHostPort(hostPortStr string) (Addr, error) {
	host, portStr, err := net.SplitHostPort(hostPortStr)
	if err != nil {
		return Addr{}, err
	}
	if host == "" {
		host = "127.0.0.1"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Addr{}, err
	}
	if port <= 0 || port > 65535 {
		return Addr{}, utils.ErrInErr{ErrDesc: "port out of range", ErrDetail: utils.ErrInvalidData, Data: port}
	}

	return NewAddrFromHostPort(host, port), nil
}

func (a Addr) HostStr() string {
	if a.IP == nil {
		return a.Name
	}
	return a.IP.String()
}

func (a Addr) String() string {
	return net.JoinHostPort(a.HostStr(), strconv.Itoa(a.Port))
}

func (a Addr) IsUDP() bool {
	switch a.Network {
	case "udp", "udp4", "udp6":
		return true
	}
	return false
}

func (a Addr) IsIpv6() bool {
	if a.IP == nil {
		return false
	}
	return a.IP.To4() == nil
}
