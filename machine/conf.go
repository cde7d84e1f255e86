package machine

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	ws_tunnel "github.com/e1732a364fed/ws_tunnel"
	"github.com/e1732a364fed/ws_tunnel/netLayer"
	"github.com/e1732a364fed/ws_tunnel/utils"
)

// 环境变量 优先于 配置文件
const (
	EnvUUID = "WS_TUNNEL_UUID"
	EnvPath = "WS_TUNNEL_PATH"
)

// Conf 为 toml配置文件 的格式, 由 [app] 与 [listen] 两部分组成
type Conf struct {
	App    *AppConf             `toml:"app"`
	Listen ws_tunnel.ServerConf `toml:"listen"`
}

// AppConf 配置App级别的配置
type AppConf struct {
	LogLevel           *int    `toml:"loglevel"` //需要为指针, 否则无法判断0到底是未给出的默认值还是 显式声明的0
	LogFile            *string `toml:"logfile"`
	DialTimeoutSeconds *int    `toml:"dial_timeout"`
	MaxFrameSize       int64   `toml:"max_frame_size"`
}

func LoadConfFromBs(bs []byte) (c Conf, err error) {
	if _, err = toml.Decode(string(bs), &c); err != nil {
		err = utils.ErrInErr{ErrDesc: "can not parse toml config", ErrDetail: err}
		return
	}
	c.applyEnv()
	return
}

func (c *Conf) applyEnv() {
	if v := os.Getenv(EnvUUID); v != "" {
		c.Listen.UUID = v
	}
	if v := os.Getenv(EnvPath); v != "" {
		c.Listen.Path = v
	}
}

// 命令行 显式给出的 -ll, -lf 优先于 配置文件
func (ac *AppConf) Setup() {
	if ac == nil {
		return
	}

	if ac.LogFile != nil && !utils.IsFlagGiven("lf") {
		utils.LogOutFileName = *ac.LogFile
	}

	if ac.LogLevel != nil && !utils.IsFlagGiven("ll") {
		utils.LogLevel = *ac.LogLevel
	}

	if ac.DialTimeoutSeconds != nil {
		if s := *ac.DialTimeoutSeconds; s > 0 {
			netLayer.DialTimeout = time.Duration(s) * time.Second
		}
	}
}
