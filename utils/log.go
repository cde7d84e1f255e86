// Package utils provides utilities that is used in all sub-packages in ws_tunnel
package utils

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	Log_debug = iota
	Log_info
	Log_warning
	Log_error //error一般用于输出一些 连接错误或者客户端协议错误之类的, 但不致命
	Log_fatal

	DefaultLL = Log_info
)

// LogLevel 值越小越唠叨, 废话越多，值越大打印的越少，见log_开头的常量;
// 默认是 info级别.
//
// LogOutFileName 不为空时, 日志会同时写入该文件, 文件由 lumberjack 负责切割.
var (
	LogLevel       int = DefaultLL
	LogOutFileName string
	ZapLogger      *zap.Logger
)

func init() {
	//在 InitLog 被调用之前, 各个包(比如测试里)依然可能打印日志, 所以先给一个什么也不做的logger
	ZapLogger = zap.NewNop()
}

func InitLog() {
	//我们的loglevel就是zap的loglevel+1
	atomicLevel := zap.NewAtomicLevel()
	atomicLevel.SetLevel(zapcore.Level(LogLevel - 1))

	consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:  "msg",
		LevelKey:    "level",
		TimeKey:     "time",
		FunctionKey: "func",
		EncodeLevel: zapcore.CapitalColorLevelEncoder,
		EncodeTime:  zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000"),
		EncodeName:  zapcore.FullNameEncoder,
		LineEnding:  zapcore.DefaultLineEnding,
	}), zapcore.AddSync(os.Stdout), atomicLevel)

	core := consoleCore

	if LogOutFileName != "" {
		fileSyncer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   LogOutFileName,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     28,
		})

		//文件里不要颜色
		jsonConf := zap.NewProductionEncoderConfig()
		jsonConf.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")

		core = zapcore.NewTee(consoleCore, zapcore.NewCore(zapcore.NewJSONEncoder(jsonConf), fileSyncer, atomicLevel))
	}

	ZapLogger = zap.New(core)
	ZapLogger.Info("log init success", zap.Int("level", LogLevel), zap.String("file", LogOutFileName))
}

func CanLogLevel(l int, msg string) *zapcore.CheckedEntry {
	return ZapLogger.Check(zapcore.Level(l-1), msg)
}

func canLogLevel(l zapcore.Level, msg string) *zapcore.CheckedEntry {
	return ZapLogger.Check(l, msg)
}

func CanLogErr(msg string) *zapcore.CheckedEntry {
	return canLogLevel(zap.ErrorLevel, msg)
}

func CanLogInfo(msg string) *zapcore.CheckedEntry {
	return canLogLevel(zap.InfoLevel, msg)
}

func CanLogWarn(msg string) *zapcore.CheckedEntry {
	return canLogLevel(zap.WarnLevel, msg)
}

func CanLogDebug(msg string) *zapcore.CheckedEntry {
	return canLogLevel(zap.DebugLevel, msg)
}

func CanLogFatal(msg string) *zapcore.CheckedEntry {
	return canLogLevel(zap.FatalLevel, msg)
}

func Info(msg string) {
	ZapLogger.Info(msg)
}
