package client

type Client interface {
	Connect() error // 连接服务器 阻塞直到会话结束
	Disconnect()
}
