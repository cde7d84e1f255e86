package proxy_test

import (
	"testing"

	"github.com/e1732a364fed/ws_tunnel/proxy"
	_ "github.com/e1732a364fed/ws_tunnel/proxy/shadowsocks"
	"github.com/e1732a364fed/ws_tunnel/proxy/trojan"
	_ "github.com/e1732a364fed/ws_tunnel/proxy/vless"
	"github.com/e1732a364fed/ws_tunnel/utils"
	"github.com/shadowsocks/go-shadowsocks2/socks"
)

func TestParserSet(t *testing.T) {
	id, _ := utils.StrToUUID("1b671a64-40d5-491e-99b0-da01ff1f3341")
	ps, err := proxy.NewParserSet(&proxy.ParserConf{UUID: id, HasUUID: true})
	if err != nil {
		t.Log(err)
		t.FailNow()
	}
	if len(proxy.RegisteredProtocols()) != 3 {
		t.Log(proxy.RegisteredProtocols())
		t.Fail()
	}

	tr := append(trojan.SHA224_hexStringBytes("whatever"), '\r', '\n', trojan.CmdConnect)
	tr = append(tr, socks.ParseAddr("93.184.216.34:443")...)
	tr = append(tr, '\r', '\n', 'h', 'i')

	p, h, err := ps.Parse(tr)
	if err != nil || p != proxy.Trojan || h.Address != "93.184.216.34" || string(h.Payload(tr)) != "hi" {
		t.Log(p, h, err)
		t.Fail()
	}

	vl := append([]byte{0}, id[:]...)
	vl = append(vl, 0, 1, 0, 80, 2, 11)
	vl = append(vl, "example.com"...)
	p, h, err = ps.Parse(vl)
	if err != nil || p != proxy.Vless || h.Address != "example.com" || h.Port != 80 || len(h.ResponsePrefix) != 2 {
		t.Log(p, h, err)
		t.Fail()
	}

	ss := socks.ParseAddr("[::]:53")
	p, h, err = ps.Parse(ss)
	if err != nil || p != proxy.Shadowsocks || !h.IsUDP() || h.Address != "0:0:0:0:0:0:0:0" {
		t.Log(p, h, err)
		t.Fail()
	}

	p, _, err = ps.Parse([]byte{9, 9, 9})
	if p != proxy.Shadowsocks || !errorsIsParse(err) {
		t.Log(p, err)
		t.Fail()
	}
}
