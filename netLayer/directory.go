package netLayer

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/e1732a364fed/ws_tunnel/utils"
	"go.uber.org/atomic"
)

// Directory 是 国家代码 -> 候选地址列表 的只读目录.
// 实现者必须保证并发读安全; 会话只读, 从不修改它.
type Directory interface {
	Lookup(countryCode string) []string
}

// StaticDirectory 的 key 为大写的两字母国家代码, value 为 "ip:port" 形式的字符串.
type StaticDirectory map[string][]string

func (sd StaticDirectory) Lookup(cc string) []string {
	return sd[strings.ToUpper(cc)]
}

// DirectorySnapshot 持有一份 StaticDirectory 快照. 刷新 只能通过 Store 整体替换,
// 已经拿到旧快照的读者不受影响.
type DirectorySnapshot struct {
	v atomic.Value
}

func NewDirectorySnapshot(sd StaticDirectory) *DirectorySnapshot {
	ds := &DirectorySnapshot{}
	ds.Store(sd)
	return ds
}

func (ds *DirectorySnapshot) Store(sd StaticDirectory) {
	if sd == nil {
		sd = StaticDirectory{}
	}
	ds.v.Store(sd)
}

func (ds *DirectorySnapshot) Load() StaticDirectory {
	sd, _ := ds.v.Load().(StaticDirectory)
	return sd
}

func (ds *DirectorySnapshot) Lookup(cc string) []string {
	return ds.Load().Lookup(cc)
}

// LoadDirectoryFile 读取 toml 格式的目录文件, 形如
//
//	SG = ["1.2.3.4:443", "5.6.7.8:443"]
//	JP = ["9.9.9.9-8443"]
func LoadDirectoryFile(fileNamePath string) (StaticDirectory, error) {
	bs, err := os.ReadFile(fileNamePath)
	if err != nil {
		return nil, utils.ErrInErr{ErrDesc: "can't open directory file", ErrDetail: err, Data: fileNamePath}
	}
	return LoadDirectoryStr(string(bs))
}

func LoadDirectoryStr(str string) (StaticDirectory, error) {
	raw := map[string][]string{}
	if _, err := toml.Decode(str, &raw); err != nil {
		return nil, utils.ErrInErr{ErrDesc: "can't parse directory", ErrDetail: err}
	}
	sd := make(StaticDirectory, len(raw))
	for k, v := range raw {
		sd[strings.ToUpper(k)] = v
	}
	return sd, nil
}
