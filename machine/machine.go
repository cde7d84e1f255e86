/*
Package machine 把 配置加载, 监听, 目录刷新 包装起来, 对外像一个黑盒子; 可执行文件只需要 New, LoadConfig, Start, Stop.

关键点是不使用任何静态变量，所有状态都放在 M 中.
*/
package machine

import (
	"net"
	"os"
	"path/filepath"
	"sync"

	ws_tunnel "github.com/e1732a364fed/ws_tunnel"
	"github.com/e1732a364fed/ws_tunnel/netLayer"
	"github.com/e1732a364fed/ws_tunnel/utils"
	"go.uber.org/zap"
)

type M struct {
	sync.RWMutex

	conf    Conf
	confDir string

	directory *netLayer.DirectorySnapshot

	server   *ws_tunnel.Server
	listener net.Listener
	running  bool

	callbacks
}

func New() *M {
	return &M{
		directory: netLayer.NewDirectorySnapshot(nil),
	}
}

// LoadConfig 按 utils.GetFilePath 的规则 找到配置文件 并加载.
func (m *M) LoadConfig(fileName string) error {
	fpath := utils.GetFilePath(fileName)
	if fpath == "" {
		return utils.ErrInErr{ErrDesc: "config file not found", ErrDetail: os.ErrNotExist, Data: fileName}
	}
	bs, err := os.ReadFile(fpath)
	if err != nil {
		return utils.ErrInErr{ErrDesc: "can not read config file", ErrDetail: err, Data: fpath}
	}
	m.confDir = filepath.Dir(fpath)
	return m.LoadConfigByTomlBytes(bs)
}

func (m *M) LoadConfigByTomlBytes(bs []byte) error {
	c, err := LoadConfFromBs(bs)
	if err != nil {
		return err
	}
	c.App.Setup()

	m.Lock()
	m.conf = c
	m.Unlock()
	return nil
}

func (m *M) Conf() Conf {
	m.RLock()
	defer m.RUnlock()
	return m.conf
}

func (m *M) IsRunning() bool {
	m.RLock()
	defer m.RUnlock()
	return m.running
}

// 监听的实际地址; 配置的端口为0时 很有用. 没在运行时返回空.
func (m *M) Addr() string {
	m.RLock()
	defer m.RUnlock()
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

func (m *M) ActiveSessions() int64 {
	m.RLock()
	defer m.RUnlock()
	if m.server == nil {
		return 0
	}
	return m.server.ActiveSessions()
}

func (m *M) directoryPath() string {
	f := m.conf.Listen.DirectoryFile
	if f == "" || filepath.IsAbs(f) || m.confDir == "" {
		return f
	}
	return filepath.Join(m.confDir, f)
}

// Start 非阻塞. 已在运行时 什么也不做.
func (m *M) Start() error {
	m.Lock()
	defer m.Unlock()

	if m.running {
		return nil
	}

	lc := m.conf.Listen
	if lc.MaxMessageSize <= 0 && m.conf.App != nil {
		lc.MaxMessageSize = m.conf.App.MaxFrameSize
	}
	if lc.Addr == "" {
		return utils.ErrInErr{ErrDesc: "no listen addr given", ErrDetail: utils.ErrNilParameter}
	}
	network := lc.Network
	if network == "" {
		network = "tcp"
	}

	if fp := m.directoryPath(); fp != "" {
		sd, err := netLayer.LoadDirectoryFile(fp)
		if err != nil {
			return err
		}
		m.directory.Store(sd)
	}

	s, err := ws_tunnel.NewServer(lc, m.directory)
	if err != nil {
		return err
	}

	l, err := netLayer.Listen(network, lc.Addr, lc.Xver != 0)
	if err != nil {
		return err
	}

	utils.Info("Starting...")

	m.server, m.listener = s, l
	m.running = true
	go s.Serve(l)

	m.callToggle(true)
	return nil
}

// Stop 关闭监听, 并等待所有会话结束.
func (m *M) Stop() {
	m.Lock()
	defer m.Unlock()

	if !m.running {
		return
	}
	utils.Info("Stopping...")

	m.listener.Close()
	m.server.Close()

	if ce := utils.CanLogInfo("stopped"); ce != nil {
		ce.Write(zap.Uint64("total_sessions", m.server.TotalSessions()))
	}

	m.server, m.listener = nil, nil
	m.running = false
	m.callToggle(false)
}

// ReloadDirectory 重新读取 目录文件 并整体替换; 已经开始的会话 不受影响. 读取失败时 保留旧目录.
func (m *M) ReloadDirectory() error {
	m.RLock()
	fp := m.directoryPath()
	m.RUnlock()

	if fp == "" {
		return utils.ErrInErr{ErrDesc: "no directory_file given", ErrDetail: utils.ErrNilParameter}
	}

	sd, err := netLayer.LoadDirectoryFile(fp)
	if err != nil {
		if ce := utils.CanLogErr("reload directory failed"); ce != nil {
			ce.Write(zap.Error(err))
		}
		return err
	}
	m.directory.Store(sd)

	if ce := utils.CanLogInfo("directory reloaded"); ce != nil {
		ce.Write(zap.String("file", fp), zap.Int("countries", len(sd)))
	}
	m.callReloaded(len(sd))
	return nil
}
