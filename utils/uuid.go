package utils

import (
	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"
)

const UUID_BytesLen = 16

// StrToUUID 只接受标准的 8-4-4-4-12 形式.
func StrToUUID(s string) (u [UUID_BytesLen]byte, err error) {
	if !govalidator.IsUUID(s) {
		return u, ErrInErr{ErrDesc: "invalid UUID Str", ErrDetail: ErrInvalidData, Data: s}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return u, ErrInErr{ErrDesc: "invalid UUID Str", ErrDetail: err, Data: s}
	}
	return parsed, nil
}

func UUIDToStr(u []byte) string {
	if len(u) != UUID_BytesLen {
		return ""
	}
	return uuid.UUID(*(*[UUID_BytesLen]byte)(u)).String()
}

// IsUUIDv4Pattern 判断 bs 按16进制写出后 是否符合 v4 uuid 的结构: 版本位为4, variant 位为 8,9,a,b 之一.
func IsUUIDv4Pattern(bs []byte) bool {
	if len(bs) < UUID_BytesLen {
		return false
	}
	u := uuid.UUID(*(*[UUID_BytesLen]byte)(bs))
	return u.Version() == 4 && u.Variant() == uuid.RFC4122
}

// 生成一个 会话id, v4
func NewSessionID() string {
	return uuid.New().String()
}
