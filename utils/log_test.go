package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestZaplog(t *testing.T) {

	LogLevel = Log_info
	InitLog()

	if ce := CanLogDebug("test1"); ce != nil {
		t.Log("debug entry should be filtered at info level")
		t.Fail()
	}

	if ce := CanLogInfo("test2"); ce != nil {
		ce.Write(
			zap.Uint32("uid", 32),
			zap.Error(errors.New("asdfdsf")),
		)
	} else {
		t.Fail()
	}
}

func TestZaplogFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "ws_tunnel.log")

	LogLevel = Log_debug
	LogOutFileName = fn
	defer func() {
		LogOutFileName = ""
		LogLevel = DefaultLL
		InitLog()
	}()
	InitLog()

	if ce := CanLogDebug("to file"); ce != nil {
		ce.Write(zap.String("k", "v"))
	}
	ZapLogger.Sync()

	bs, err := os.ReadFile(fn)
	if err != nil || len(bs) == 0 {
		t.Log("log file empty", err)
		t.FailNow()
	}
}
