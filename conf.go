package ws_tunnel

import (
	"github.com/e1732a364fed/ws_tunnel/netLayer"
	"github.com/e1732a364fed/ws_tunnel/proxy"
	"github.com/e1732a364fed/ws_tunnel/proxy/vless"
	"github.com/e1732a364fed/ws_tunnel/utils"
	"go.uber.org/zap"
)

// profile 决定 vless 的头部布局 与 udp 的承载方式.
const (
	ProfileSocket = "socket" // vless port_first, udp 通过 tcp 中继
	ProfileEdge   = "edge"   // vless addr_first, udp 只能是 dns, 通过 DoH
)

const (
	UDPModeRelay = "relay"
	UDPModeDoH   = "doh"
)

const (
	DefaultPath      = "/ws"
	DefaultDNSServer = "8.8.8.8:53"
)

// ServerConf 是 一个监听的全部配置. 它也是 toml 配置文件里 [listen] 的内容.
type ServerConf struct {
	Addr    string `toml:"addr"`
	Network string `toml:"network"` // tcp 或 unix
	Xver    int    `toml:"xver"`    // 不为0 时 要求 PROXY protocol

	Path    string `toml:"path"`
	Profile string `toml:"profile"`

	VlessLayout string `toml:"vless_layout"`
	UDPMode     string `toml:"udp_mode"`

	UUID           string `toml:"uuid"`
	TrojanPassword string `toml:"trojan_password"`

	UDPRelay  string `toml:"udp_relay"`
	DNSServer string `toml:"dns_server"`
	DoHURL    string `toml:"doh_url"`

	DenyCIDRs []string `toml:"deny_cidrs"`

	DirectoryFile string `toml:"directory_file"`

	MaxMessageSize int64 `toml:"max_frame_size"`
}

// resolved 是 ServerConf 经过验证 并填充默认值 之后的样子.
type resolved struct {
	path    string
	udpMode string

	parserConf proxy.ParserConf

	udpRelay    netLayer.Addr
	hasUDPRelay bool
	dnsServer   netLayer.Addr

	doh      *netLayer.DoHClient
	denyList *netLayer.DenyList

	maxMessageSize int64
}

func (sc *ServerConf) resolve() (r resolved, err error) {
	r.path = sc.Path
	if r.path == "" {
		r.path = DefaultPath
	}

	layout, udpMode := vless.LayoutPortFirst, UDPModeRelay
	switch sc.Profile {
	case "", ProfileSocket:
	case ProfileEdge:
		layout, udpMode = vless.LayoutAddrFirst, UDPModeDoH
	default:
		err = utils.ErrInErr{ErrDesc: "unknown profile", ErrDetail: utils.ErrWrongParameter, Data: sc.Profile}
		return
	}
	if sc.VlessLayout != "" {
		layout = sc.VlessLayout
	}
	if sc.UDPMode != "" {
		udpMode = sc.UDPMode
	}
	switch udpMode {
	case UDPModeRelay, UDPModeDoH:
	default:
		err = utils.ErrInErr{ErrDesc: "unknown udp_mode", ErrDetail: utils.ErrWrongParameter, Data: udpMode}
		return
	}
	r.udpMode = udpMode

	r.parserConf.VlessLayout = layout
	r.parserConf.TrojanPassword = sc.TrojanPassword
	if sc.UUID != "" {
		if r.parserConf.UUID, err = utils.StrToUUID(sc.UUID); err != nil {
			return
		}
		r.parserConf.HasUUID = true
	}

	if sc.UDPRelay != "" {
		if r.udpRelay, err = netLayer.NewAddrByHostPort(sc.UDPRelay); err != nil {
			err = utils.ErrInErr{ErrDesc: "invalid udp_relay", ErrDetail: err, Data: sc.UDPRelay}
			return
		}
		r.hasUDPRelay = true
	} else if udpMode == UDPModeRelay {
		if ce := utils.CanLogWarn("udp_mode is relay but no udp_relay given, all udp requests will fail"); ce != nil {
			ce.Write()
		}
	}

	dns := sc.DNSServer
	if dns == "" {
		dns = DefaultDNSServer
	}
	if r.dnsServer, err = netLayer.NewAddrByHostPort(dns); err != nil {
		err = utils.ErrInErr{ErrDesc: "invalid dns_server", ErrDetail: err, Data: dns}
		return
	}

	if udpMode == UDPModeDoH {
		r.doh = netLayer.NewDoHClient(sc.DoHURL)
	}

	if len(sc.DenyCIDRs) > 0 {
		if r.denyList, err = netLayer.NewDenyList(sc.DenyCIDRs); err != nil {
			return
		}
	}

	r.maxMessageSize = sc.MaxMessageSize
	if r.maxMessageSize <= 0 {
		r.maxMessageSize = utils.MaxBufLen
	}

	if ce := utils.CanLogDebug("server conf resolved"); ce != nil {
		ce.Write(
			zap.String("path", r.path),
			zap.String("vless_layout", layout),
			zap.String("udp_mode", r.udpMode),
			zap.Bool("has_uuid", r.parserConf.HasUUID),
			zap.Int("deny_cidrs", r.denyList.Len()),
		)
	}
	return
}
