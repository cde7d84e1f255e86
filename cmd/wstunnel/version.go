package main

import (
	"fmt"
	"io"
	"runtime"

	ws_tunnel "github.com/e1732a364fed/ws_tunnel"
)

const (
	desc      = "A websocket tunnel that speaks trojan, vless and shadowsocks\n"
	delimiter = "===============================\n"
)

var Version string = "[version_undefined]" //版本号可由 -ldflags "-X 'main.Version=v1.x.x'" 指定

func versionStr() string {
	return fmt.Sprintf("wstunnel %s, %s %s %s, protocols: %v \n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH, ws_tunnel.Protocols())
}

func printVersion(w io.StringWriter) {
	w.WriteString(delimiter)
	w.WriteString(versionStr())
	w.WriteString(delimiter)
	w.WriteString(desc)
	w.WriteString(delimiter)
}
