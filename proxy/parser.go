package proxy

import (
	"sort"

	"github.com/e1732a364fed/ws_tunnel/utils"
	"go.uber.org/zap"
)

// Parser 解析 某一协议的 请求头. 实现必须 并发安全, 且不会修改 chunk.
type Parser interface {
	Protocol() Protocol
	Parse(chunk []byte) (*RequestHeader, error)
}

// ParserConf 是所有 Parser 共用的配置, 各 Parser 只读取自己关心的字段.
type ParserConf struct {
	UUID    [utils.UUID_BytesLen]byte
	HasUUID bool

	// 不为空时 trojan 头部的前56字节 必须与之匹配
	TrojanPassword string

	// vless 的头部布局, 见 vless 包
	VlessLayout string
}

type ParserCreator func(conf *ParserConf) (Parser, error)

var parserCreatorMap = make(map[Protocol]ParserCreator)

// 规定，每个 实现 Parser 的包必须在 init 中使用本函数进行注册
func RegisterParser(p Protocol, c ParserCreator) {
	parserCreatorMap[p] = c
}

// RegisteredProtocols 按顺序返回 所有已注册的协议.
func RegisteredProtocols() []Protocol {
	ps := make([]Protocol, 0, len(parserCreatorMap))
	for p := range parserCreatorMap {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i] < ps[j] })
	return ps
}

// ParserSet 先 Sniff 再 分派给 对应的 Parser.
type ParserSet struct {
	parsers map[Protocol]Parser
}

func NewParserSet(conf *ParserConf) (*ParserSet, error) {
	ps := &ParserSet{parsers: make(map[Protocol]Parser, len(parserCreatorMap))}
	for _, p := range RegisteredProtocols() {
		parser, err := parserCreatorMap[p](conf)
		if err != nil {
			return nil, utils.ErrInErr{ErrDesc: "create parser failed", ErrDetail: err, Data: p.String()}
		}
		ps.parsers[p] = parser

		if ce := utils.CanLogDebug("parser ready"); ce != nil {
			ce.Write(zap.String("protocol", p.String()))
		}
	}
	return ps, nil
}

// Parse 判断 chunk 的协议 并解析其头部. 返回的 Protocol 在出错时 也是有效的, 便于记录日志.
func (ps *ParserSet) Parse(chunk []byte) (Protocol, *RequestHeader, error) {
	p := Sniff(chunk)
	parser := ps.parsers[p]
	if parser == nil {
		return p, nil, parseErr("protocol", ErrNoParser)
	}
	h, err := parser.Parse(chunk)
	return p, h, err
}
