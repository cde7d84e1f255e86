package proxy

import (
	"errors"
	"strings"
)

type ErrKind int

const (
	KindAuthentication ErrKind = iota + 1
	KindProtocolParse
	KindUnsupportedCommand
	KindUnsupportedUDPTarget
	KindDial
	KindRelay
)

func (k ErrKind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication failed"
	case KindProtocolParse:
		return "protocol parse failed"
	case KindUnsupportedCommand:
		return "unsupported command"
	case KindUnsupportedUDPTarget:
		return "unsupported UDP target"
	case KindDial:
		return "dial failed"
	case KindRelay:
		return "relay failed"
	}
	return "unknown error"
}

// Err 是 会话失败的原因. 用 errors.Is 与下面的 ErrXxx 比较 即可得知其种类.
type Err struct {
	Kind   ErrKind
	Field  string // 出错的字段, 比如 "uuid", "port"; 可为空
	Detail error
}

var (
	ErrAuthentication       = &Err{Kind: KindAuthentication}
	ErrProtocolParse        = &Err{Kind: KindProtocolParse}
	ErrUnsupportedCommand   = &Err{Kind: KindUnsupportedCommand}
	ErrUnsupportedUDPTarget = &Err{Kind: KindUnsupportedUDPTarget}
	ErrDial                 = &Err{Kind: KindDial}
	ErrRelay                = &Err{Kind: KindRelay}

	ErrShortHeader   = errors.New("header too short")
	ErrEmptyAddress  = errors.New("empty address")
	ErrBadAddrType   = errors.New("invalid address type")
	ErrNoParser      = errors.New("no parser for protocol")
	ErrUUIDMismatch  = errors.New("uuid not match")
	ErrBadVersion    = errors.New("bad version")
	ErrHashMismatch  = errors.New("hash not match")
	ErrMissingConfig = errors.New("missing required config")
)

func NewErr(kind ErrKind, field string, detail error) *Err {
	return &Err{Kind: kind, Field: field, Detail: detail}
}

func (e *Err) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Field != "" {
		sb.WriteString(", field: ")
		sb.WriteString(e.Field)
	}
	if e.Detail != nil {
		sb.WriteString(", ")
		sb.WriteString(e.Detail.Error())
	}
	return sb.String()
}

func (e *Err) Unwrap() error {
	return e.Detail
}

func (e *Err) Is(target error) bool {
	t, ok := target.(*Err)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf 返回 err 链中 第一个 *Err 的种类, 没有则返回0.
func KindOf(err error) ErrKind {
	var e *Err
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func parseErr(field string, detail error) *Err {
	return NewErr(KindProtocolParse, field, detail)
}
