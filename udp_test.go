package ws_tunnel_test

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	ws_tunnel "github.com/e1732a364fed/ws_tunnel"
	gws "github.com/gobwas/ws"
	"github.com/miekg/dns"
)

func dnsQuery(t *testing.T, name string) []byte {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeA)
	bs, err := m.Pack()
	if err != nil {
		t.FailNow()
	}
	return bs
}

func TestUDPRelay(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.FailNow()
	}
	defer l.Close()

	q1, q2 := dnsQuery(t, "example.com"), dnsQuery(t, "example.org")
	relayErr := make(chan error, 1)

	go func() {
		c, err := l.Accept()
		if err != nil {
			relayErr <- err
			return
		}
		defer c.Close()

		for i, q := range [][]byte{q1, q2} {
			want := append([]byte("udp:1.1.1.1:53|"), q...)
			got := make([]byte, len(want))
			if _, err := io.ReadFull(c, got); err != nil {
				relayErr <- err
				return
			}
			if !bytes.Equal(got, want) {
				relayErr <- io.ErrUnexpectedEOF
				return
			}
			c.Write([]byte{'a', byte('0' + i)})
		}
		relayErr <- nil

		io.Copy(io.Discard, c)
	}()

	_, addr := startServer(t, ws_tunnel.ServerConf{
		UUID:      testUUID,
		UDPRelay:  l.Addr().String(),
		DNSServer: "1.1.1.1:53",
	}, nil)

	c := dialWs(t, addr, "/ws", vlessHeader(testUUID, 2, []byte{8, 8, 4, 4}, 53, q1))

	if bs := readMsg(t, c); !bytes.Equal(bs, []byte{0, 0, 'a', '0'}) {
		t.Log(bs)
		t.FailNow()
	}

	c.Write(q2)
	if bs := readMsg(t, c); string(bs) != "a1" {
		t.Log(bs)
		t.Fail()
	}

	if err := <-relayErr; err != nil {
		t.Log("relay got", err)
		t.Fail()
	}
}

func TestUDPRelayMissing(t *testing.T) {
	_, addr := startServer(t, ws_tunnel.ServerConf{UUID: testUUID}, nil)

	c := dialWs(t, addr, "/ws", vlessHeader(testUUID, 2, []byte{8, 8, 4, 4}, 53, []byte{1}))
	if code := readCloseCode(c); code != gws.StatusInternalServerError {
		t.Log(code)
		t.Fail()
	}
}

func TestDoH(t *testing.T) {
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bs, _ := io.ReadAll(r.Body)
		q := new(dns.Msg)
		if r.Method != http.MethodPost || q.Unpack(bs) != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		m := new(dns.Msg)
		m.SetReply(q)
		rr, _ := dns.NewRR(q.Question[0].Name + " 60 IN A 93.184.216.34")
		m.Answer = append(m.Answer, rr)
		out, _ := m.Pack()
		w.Header().Set("Content-Type", "application/dns-message")
		w.Write(out)
	}))
	defer hs.Close()

	_, addr := startServer(t, ws_tunnel.ServerConf{
		UUID:    testUUID,
		Profile: ws_tunnel.ProfileEdge,
		DoHURL:  hs.URL,
	}, nil)

	query := dnsQuery(t, "example.com")
	c := dialWs(t, addr, "/ws", vlessAddrFirstHeader(testUUID, 2, []byte{8, 8, 8, 8}, 53, query))

	bs := readMsg(t, c)
	if len(bs) < 2 || bs[0] != 0 || bs[1] != 0 {
		t.Log(bs)
		t.FailNow()
	}
	m := new(dns.Msg)
	if err := m.Unpack(bs[2:]); err != nil {
		t.Log(err)
		t.FailNow()
	}
	if len(m.Answer) != 1 || m.Id != dnsID(query) {
		t.Log(m)
		t.Fail()
	}

	c = dialWs(t, addr, "/ws", vlessAddrFirstHeader(testUUID, 2, []byte{8, 8, 8, 8}, 443, query))
	if code := readCloseCode(c); code != gws.StatusUnsupportedData {
		t.Log(code)
		t.Fail()
	}
}

func dnsID(bs []byte) uint16 {
	return uint16(bs[0])<<8 | uint16(bs[1])
}
