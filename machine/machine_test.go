package machine_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/e1732a364fed/ws_tunnel/advLayer/ws"
	"github.com/e1732a364fed/ws_tunnel/machine"
	"github.com/e1732a364fed/ws_tunnel/netLayer"
)

const testConf = `
[app]
dial_timeout = 3
max_frame_size = 4096

[listen]
addr = "127.0.0.1:0"
path = "/tunnel"
uuid = "1b671a64-40d5-491e-99b0-da01ff1f3341"
deny_cidrs = ["10.0.0.0/8"]
directory_file = "proxies.toml"
`

func writeConf(t *testing.T, directory string) string {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "server.toml"), []byte(testConf), 0o644); err != nil {
		t.FailNow()
	}
	if err := os.WriteFile(filepath.Join(dir, "proxies.toml"), []byte(directory), 0o644); err != nil {
		t.FailNow()
	}
	return filepath.Join(dir, "server.toml")
}

func TestLoadConf(t *testing.T) {
	t.Setenv(machine.EnvPath, "/from-env")

	c, err := machine.LoadConfFromBs([]byte(testConf))
	if err != nil {
		t.Log(err)
		t.FailNow()
	}
	if c.Listen.Path != "/from-env" || c.Listen.Addr != "127.0.0.1:0" || len(c.Listen.DenyCIDRs) != 1 {
		t.Log(c.Listen)
		t.Fail()
	}
	if c.App == nil || c.App.MaxFrameSize != 4096 || *c.App.DialTimeoutSeconds != 3 {
		t.Log(c.App)
		t.Fail()
	}

	c.App.Setup()
	if netLayer.DialTimeout != 3*time.Second {
		t.Log(netLayer.DialTimeout)
		t.Fail()
	}
	netLayer.DialTimeout = netLayer.DefaultDialTimeout

	if _, err := machine.LoadConfFromBs([]byte("[listen\naddr=")); err == nil {
		t.Fail()
	}
}

func TestStartStop(t *testing.T) {
	m := machine.New()
	if err := m.LoadConfig(writeConf(t, `SG = ["127.0.0.1:1"]`)); err != nil {
		t.Log(err)
		t.FailNow()
	}

	var toggles []bool
	m.AddToggleCallback(func(running bool) { toggles = append(toggles, running) })

	if err := m.Start(); err != nil {
		t.Log(err)
		t.FailNow()
	}
	defer m.Stop()

	addr := m.Addr()
	if !m.IsRunning() || addr == "" {
		t.FailNow()
	}

	for _, path := range []string{"/tunnel", "/SG", "/127.0.0.1:443"} {
		cli, _ := ws.NewClient(addr, path)
		tcpConn, err := net.Dial("tcp", addr)
		if err != nil {
			t.FailNow()
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		c, err := cli.Handshake(ctx, tcpConn, nil)
		cancel()
		if err != nil {
			t.Log(path, err)
			t.Fail()
			continue
		}
		c.Close()
	}

	m.Stop()
	if m.IsRunning() || m.Addr() != "" {
		t.Fail()
	}
	if len(toggles) != 2 || !toggles[0] || toggles[1] {
		t.Log(toggles)
		t.Fail()
	}
	if _, err := net.Dial("tcp", addr); err == nil {
		t.Log("listener should be closed after Stop")
		t.Fail()
	}
}

func TestReloadDirectory(t *testing.T) {
	fn := writeConf(t, `SG = ["127.0.0.1:1"]`)

	m := machine.New()
	if err := m.LoadConfig(fn); err != nil {
		t.FailNow()
	}
	if err := m.Start(); err != nil {
		t.Log(err)
		t.FailNow()
	}
	defer m.Stop()

	got := -1
	m.AddReloadCallback(func(n int) { got = n })

	dirFile := filepath.Join(filepath.Dir(fn), "proxies.toml")
	os.WriteFile(dirFile, []byte("SG = [\"127.0.0.1:1\"]\nJP = [\"127.0.0.1-2\"]\n"), 0o644)

	if err := m.ReloadDirectory(); err != nil || got != 2 {
		t.Log(err, got)
		t.Fail()
	}

	os.WriteFile(dirFile, []byte("not toml ["), 0o644)
	if err := m.ReloadDirectory(); err == nil {
		t.Log("bad directory should be rejected")
		t.Fail()
	}
	if got != 2 {
		t.Fail()
	}
}
