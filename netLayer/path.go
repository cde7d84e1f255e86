package netLayer

import (
	"errors"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/biter777/countries"
	"github.com/e1732a364fed/ws_tunnel/utils"
)

// ws 握手的 path 有三种写法:
//
//	固定路径, 比如 /ws
//	/<addr>:<port>, /<addr>-<port>, /<addr>=<port>  直接给出 failover 候选地址
//	/<CC> 或 /<CC>,<CC>,...  两字母国家代码, 从目录中随机挑一个候选地址
const (
	PathFixed = iota
	PathLiteral
	PathCountries
)

var literalPathRegexp = regexp.MustCompile(`^/(.+[:=-]\d+)$`)

var ErrPathNotMatch = errors.New("ws path not match")

// Candidate 为 failover 时所使用的备用目标. Port 为0 表示 沿用原目标的端口.
type Candidate struct {
	Host string
	Port int
}

func (c Candidate) Addr(originalPort int) Addr {
	p := c.Port
	if p == 0 {
		p = originalPort
	}
	return NewAddrFromHostPort(c.Host, p)
}

type UpgradePath struct {
	Kind      int
	Literal   Candidate
	Countries []string //大写 ISO 3166-1 alpha-2
}

// ParseUpgradePath 依照上面的语法 解析 path (不含query部分). 不符合任何一种写法时返回 ErrPathNotMatch.
func ParseUpgradePath(path, fixedPath string) (up UpgradePath, err error) {
	if fixedPath != "" && path == fixedPath {
		up.Kind = PathFixed
		return
	}

	if len(path) == 3 || strings.Contains(path, ",") {
		ccs, ok := parseCountryCodes(strings.TrimPrefix(path, "/"))
		if ok {
			up.Kind = PathCountries
			up.Countries = ccs
			return
		}
	}

	if m := literalPathRegexp.FindStringSubmatch(path); m != nil {
		if c, ok := ParseCandidate(m[1]); ok {
			up.Kind = PathLiteral
			up.Literal = c
			return
		}
	}

	err = utils.ErrInErr{ErrDesc: ErrPathNotMatch.Error(), ErrDetail: ErrPathNotMatch, Data: path}
	return
}

func parseCountryCodes(s string) (ccs []string, ok bool) {
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if len(part) != 2 {
			return nil, false
		}
		if countries.ByName(part) == countries.Unknown {
			return nil, false
		}
		ccs = append(ccs, part)
	}
	return ccs, len(ccs) > 0
}

// ParseCandidate 解析 addr:port / addr-port / addr=port; 以最后一个分隔符为准, 这样 带 '-' 的域名 也可以正常使用.
// 只有 addr 也是可以的, 此时 Port 为0.
func ParseCandidate(token string) (c Candidate, ok bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}

	host := token
	if i := strings.LastIndexAny(token, ":=-"); i > 0 && i < len(token)-1 {
		if p, err := strconv.Atoi(token[i+1:]); err == nil {
			if p <= 0 || p > 65535 {
				return
			}
			host = token[:i]
			c.Port = p
		}
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")

	if !govalidator.IsHost(host) {
		return
	}
	c.Host = host
	ok = true
	return
}

// PickCandidate 给出 本次连接所使用的 failover 候选. 固定路径 没有候选.
// 国家代码的情况 先随机选一个国家, 再从目录中该国家的列表里随机选一个.
func (up UpgradePath) PickCandidate(dir Directory, rnd *rand.Rand) (c Candidate, ok bool) {
	switch up.Kind {
	case PathLiteral:
		return up.Literal, true
	case PathCountries:
		if dir == nil || len(up.Countries) == 0 {
			return
		}
		cc := up.Countries[rnd.Intn(len(up.Countries))]
		list := dir.Lookup(cc)
		if len(list) == 0 {
			return
		}
		return ParseCandidate(list[rnd.Intn(len(list))])
	}
	return
}
