package netLayer_test

import (
	"bytes"
	"testing"

	"github.com/e1732a364fed/ws_tunnel/netLayer"
)

type recordWriter struct {
	writes [][]byte
}

func (rw *recordWriter) Write(p []byte) (int, error) {
	rw.writes = append(rw.writes, append([]byte(nil), p...))
	return len(p), nil
}

func TestWriteRelayDatagram(t *testing.T) {
	data := []byte{0xab, 0xcd, 1, 0, 0, 1, 0, 0, 0, 0, 0, 0}
	rw := &recordWriter{}

	if err := netLayer.WriteRelayDatagram(rw, "8.8.8.8", 53, data); err != nil {
		t.Log(err)
		t.FailNow()
	}
	if len(rw.writes) != 1 {
		t.Log("should be exactly one write, got", len(rw.writes))
		t.FailNow()
	}

	expected := append([]byte("udp:8.8.8.8:53|"), data...)
	if !bytes.Equal(rw.writes[0], expected) {
		t.Log("got", rw.writes[0])
		t.Fail()
	}

	rw.writes = nil
	netLayer.WriteRelayDatagram(rw, "example.com", 5353, nil)
	if len(rw.writes) != 1 || string(rw.writes[0]) != "udp:example.com:5353|" {
		t.Log(rw.writes)
		t.Fail()
	}
}
