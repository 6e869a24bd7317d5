package transport

import (
	"errors"
)

var (
	// ErrServerAlreadyStarted 服务器已启动
	ErrServerAlreadyStarted = errors.New("transport: server already started")

	// ErrServerNotStarted 服务器尚未启动
	ErrServerNotStarted = errors.New("transport: server not started")

	// ErrConnClosed 连接已关闭
	ErrConnClosed = errors.New("transport: connection closed")

	// ErrInvokeTimeout 出站调用等待应答超时
	ErrInvokeTimeout = errors.New("transport: invoke timed out")
)
