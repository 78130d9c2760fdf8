package proto

import "github.com/google/uuid"

const (
	ChannelBufferSize = 256
)

// Msg 为路由后得到的出站消息 对应一次广播
type Msg struct {
	Body    string
	Exclude uuid.UUID // uuid.Nil 表示不排除任何人
}

// Excludes reports whether handle must not receive m.
func (m Msg) Excludes(handle uuid.UUID) bool {
	return m.Exclude != uuid.Nil && m.Exclude == handle
}
