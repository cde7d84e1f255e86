package shadowsocks_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/e1732a364fed/ws_tunnel/proxy"
	"github.com/e1732a364fed/ws_tunnel/proxy/shadowsocks"
	"github.com/shadowsocks/go-shadowsocks2/socks"
)

func TestParse(t *testing.T) {
	p, _ := shadowsocks.NewParser(nil)

	cases := []struct {
		target string
		addr   string
		port   uint16
		udp    bool
	}{
		{"93.184.216.34:443", "93.184.216.34", 443, false},
		{"example.com:80", "example.com", 80, false},
		{"8.8.8.8:53", "8.8.8.8", 53, true},
		{"[::]:853", "0:0:0:0:0:0:0:0", 853, false},
	}

	for _, c := range cases {
		head := socks.ParseAddr(c.target)
		bs := append(append([]byte(nil), head...), "data"...)

		h, err := p.Parse(bs)
		if err != nil {
			t.Log(c.target, err)
			t.Fail()
			continue
		}
		if h.Address != c.addr || h.Port != c.port || h.IsUDP() != c.udp || h.ResponsePrefix != nil {
			t.Log(c.target, h)
			t.Fail()
		}
		if h.PayloadOffset != len(head) || !bytes.Equal(h.Payload(bs), []byte("data")) {
			t.Log(c.target, h.PayloadOffset)
			t.Fail()
		}
	}
}

func TestBadHeader(t *testing.T) {
	p, _ := shadowsocks.NewParser(nil)

	whole := socks.ParseAddr("example.com:443")
	for i := 0; i < len(whole); i++ {
		if _, err := p.Parse(whole[:i]); !errors.Is(err, proxy.ErrProtocolParse) {
			t.Log("truncated at", i, err)
			t.FailNow()
		}
	}

	for _, bs := range [][]byte{{0, 1, 2}, {2, 1, 1, 1, 1, 0, 80}, {5}, {3, 0, 0, 80}} {
		if _, err := p.Parse(bs); !errors.Is(err, proxy.ErrProtocolParse) {
			t.Log(bs, err)
			t.Fail()
		}
	}
}
