package netLayer

import (
	"errors"
	"net"
	"os"
	"strings"
	"time"

	"github.com/e1732a364fed/ws_tunnel/utils"
	"go.uber.org/zap"
)

// LoopAccept 阻塞, 直到 listener 被关闭. 每个新连接 都在自己的goroutine中 交给 acceptFunc.
func LoopAccept(listener net.Listener, acceptFunc func(net.Conn)) {
	for {
		newc, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				if ce := utils.CanLogDebug("listener closed"); ce != nil {
					ce.Write(zap.Error(err))
				}
				return
			}
			errStr := err.Error()
			if ce := utils.CanLogWarn("failed to accept connection"); ce != nil {
				ce.Write(zap.Error(err))
			}
			if strings.Contains(errStr, "too many") {
				if ce := utils.CanLogWarn("To many incoming conn! Will Sleep."); ce != nil {
					ce.Write(zap.String("err", errStr))
				}
				time.Sleep(time.Millisecond * 500)
			}
			continue
		}
		go acceptFunc(newc)
	}
}

// Listen 监听 tcp 或 unix domain socket. withPROXYprotocol 为true时 要求每个连接都带有 PROXY 头.
func Listen(network, addr string, withPROXYprotocol bool) (net.Listener, error) {
	switch network {
	case "", "tcp", "tcp4", "tcp6":
		if network == "" {
			network = "tcp"
		}
	case "unix":
		//监听 unix domain socket后，就会自动创建 相应文件; 程序退出后，该文件不会被删除,
		// 再次启动后如果遇到了这个文件，就会报 “bind: address already in use”, 所以必须把原文件删掉.
		// RemoveAll函数千万不能用，Remove函数倒是没什么大事
		if _, err := os.Stat(addr); err == nil {
			if ce := utils.CanLogDebug("unix file exist"); ce != nil {
				ce.Write(zap.String("deleting", addr))
			}
			if err = os.Remove(addr); err != nil {
				return nil, utils.ErrInErr{ErrDesc: "Error when deleting previous unix socket file,", ErrDetail: err, Data: addr}
			}
		}
	default:
		return nil, utils.ErrInErr{ErrDesc: "unsupported listen network", ErrDetail: utils.ErrWrongParameter, Data: network}
	}

	l, err := net.Listen(network, addr)
	if err != nil {
		return nil, err
	}
	if withPROXYprotocol {
		l = ListenWithPROXYprotocol(l)
	}
	return l, nil
}
