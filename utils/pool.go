package utils

import (
	"bytes"
	"sync"
)

// 一条 websocket 消息 默认最大 64k, dns over tcp 的消息 也不超过 64k, 所以 我们读目标连接 时也用 64k.
const MaxBufLen = 64 * 1024

var (
	packetPool = sync.Pool{
		New: func() any {
			return make([]byte, MaxBufLen)
		},
	}

	bufPool = sync.Pool{
		New: func() any {
			return &bytes.Buffer{}
		},
	}
)

// 从Pool中获取一个 *bytes.Buffer
func GetBuf() *bytes.Buffer {
	return bufPool.Get().(*bytes.Buffer)
}

// 将 buf 放回 Pool
func PutBuf(buf *bytes.Buffer) {
	buf.Reset()
	bufPool.Put(buf)
}

// GetPacket 返回 长度为 MaxBufLen 的 []byte, 用于 Read net.Conn
func GetPacket() []byte {
	return packetPool.Get().([]byte)
}

// 放回用 GetPacket 获取的 []byte; 容量不足 MaxBufLen 的 直接丢弃
func PutPacket(bs []byte) {
	if cap(bs) < MaxBufLen {
		return
	}
	packetPool.Put(bs[:MaxBufLen])
}
