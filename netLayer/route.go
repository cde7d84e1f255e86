package netLayer

import (
	"net"

	"github.com/e1732a364fed/ws_tunnel/utils"
	"github.com/yl2chen/cidranger"
	"go.uber.org/zap"
)

// DenyList 存放 不允许作为出站目标的 ip 段. 零值 和 nil 都表示什么也不拒绝.
//
// 本作的服务端是公开的, 没有它的话 任何客户都能通过我们访问 内网或 本机端口.
type DenyList struct {
	NetRanger cidranger.Ranger
	count     int
}

func NewDenyList(cidrs []string) (*DenyList, error) {
	dl := &DenyList{
		NetRanger: cidranger.NewPCTrieRanger(),
	}
	for _, c := range cidrs {
		_, ipnet, err := net.ParseCIDR(c)
		if err != nil {
			return nil, utils.ErrInErr{ErrDesc: "deny list, invalid cidr", ErrDetail: err, Data: c}
		}
		if err = dl.NetRanger.Insert(cidranger.NewBasicRangerEntry(*ipnet)); err != nil {
			return nil, utils.ErrInErr{ErrDesc: "deny list, insert cidr failed", ErrDetail: err, Data: c}
		}
		dl.count++
	}
	return dl, nil
}

func (dl *DenyList) Len() int {
	if dl == nil {
		return 0
	}
	return dl.count
}

// Denies 只对 ip 目标生效, 域名目标始终返回false (我们不替客户解析域名).
func (dl *DenyList) Denies(a Addr) bool {
	if dl == nil || dl.count == 0 || a.IP == nil {
		return false
	}
	ok, err := dl.NetRanger.Contains(a.IP)
	if err != nil {
		if ce := utils.CanLogDebug("deny list lookup failed"); ce != nil {
			ce.Write(zap.String("ip", a.IP.String()), zap.Error(err))
		}
		return false
	}
	return ok
}
