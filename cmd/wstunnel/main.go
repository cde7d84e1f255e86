/*
Package main 读取配置文件，然后开始监听.

命令行参数请使用 --help / -h 查看详情, 配置文件示例请参考 ../../examples/ .

SIGINT/SIGTERM 会关闭监听 并以 1001 结束所有会话; SIGHUP 重新加载 目录文件.
*/
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/e1732a364fed/ws_tunnel/machine"
	"github.com/e1732a364fed/ws_tunnel/utils"
	"github.com/pkg/profile"
	"go.uber.org/zap"
)

var (
	configFileName string
	startPProf     bool
	onlyVersion    bool

	mainM *machine.M
)

const defaultConfFn = "server.toml"

func init() {
	flag.StringVar(&configFileName, "c", defaultConfFn, "config file name")
	flag.BoolVar(&startPProf, "pp", false, "write cpu profile to the working directory")
	flag.BoolVar(&onlyVersion, "v", false, "print version and exit")

	flag.IntVar(&utils.LogLevel, "ll", utils.DefaultLL, "log level,0=debug, 1=info, 2=warning, 3=error, 4=fatal")
	flag.StringVar(&utils.LogOutFileName, "lf", "", "output file for log; If empty, no log file will be used.")
}

func main() {
	os.Exit(mainFunc())
}

func mainFunc() (result int) {
	defer func() {
		if r := recover(); r != nil {
			if ce := utils.CanLogErr("Captured panic!"); ce != nil {
				stack := debug.Stack()
				ce.Write(
					zap.Any("err:", r),
					zap.String("stacktrace", string(stack)),
				)
				log.Println(string(stack)) //zap 把多行字符串转义了, 命令行里不好读
			} else {
				log.Println("panic captured!", r, "\n", string(debug.Stack()))
			}

			result = -3

			if mainM != nil {
				mainM.Stop()
			}
		}
	}()

	utils.ParseFlags()

	printVersion(os.Stdout)
	if onlyVersion {
		return 0
	}

	if startPProf {
		//若不使用 NoShutdownHook, 则 我们ctrl+c退出时不会产生 pprof文件
		p := profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
		defer p.Stop()
	}

	mainM = machine.New()
	loadConfigErr := mainM.LoadConfig(configFileName)

	utils.InitLog()
	defer utils.Info("Program exited")

	if loadConfigErr != nil {
		if ce := utils.CanLogErr("load config failed"); ce != nil {
			ce.Write(zap.String("file", configFileName), zap.Error(loadConfigErr))
		} else {
			log.Println("load config failed", loadConfigErr)
		}
		return -1
	}

	if err := mainM.Start(); err != nil {
		if ce := utils.CanLogErr("start failed"); ce != nil {
			ce.Write(zap.Error(err))
		} else {
			log.Println("start failed", err)
		}
		return -1
	}

	if ce := utils.CanLogInfo("Started"); ce != nil {
		ce.Write(zap.String("addr", mainM.Addr()))
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	osSignals := utils.GetSystemKillChan()
	for {
		select {
		case <-hup:
			mainM.ReloadDirectory()
		case <-osSignals:
			mainM.Stop()
			return 0
		}
	}
}
