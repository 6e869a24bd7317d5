package protocol

import (
	"fmt"
)

// ============================================================================
//                              错误名
// ============================================================================

// 跨网络边界传递的类型化错误名
const (
	// ErrNameAuthentication 共享密钥缺失或不匹配
	ErrNameAuthentication = "AuthenticationError"

	// ErrNameCompatibility 主版本不兼容
	ErrNameCompatibility = "CompatibilityError"

	// ErrNameNotReady 启动宽限期内 worker 加入被拒绝
	ErrNameNotReady = "NotReadyError"

	// ErrNameBadRequest 请求格式错误或过程名未知
	ErrNameBadRequest = "BadRequestError"

	// ErrNameInternal 服务端内部错误
	ErrNameInternal = "InternalError"
)

// ============================================================================
//                              类型化错误
// ============================================================================

// Error 跨网络边界的类型化错误
//
// Name 用于远端程序化匹配，Message 面向人类可读的诊断输出。
// 握手拒绝以 JSON 形式写入 HTTP 响应体，过程失败以应答帧的
// error 字段返回。
type Error struct {
	// Name 错误类别名
	Name string `json:"name"`

	// Message 人类可读的诊断信息
	Message string `json:"message"`
}

// Error 实现 error 接口
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// NewError 创建类型化错误
func NewError(name, format string, args ...any) *Error {
	return &Error{
		Name:    name,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsErrorNamed 检查 err 是否为指定类别的类型化错误
func IsErrorNamed(err error, name string) bool {
	pe, ok := err.(*Error)
	return ok && pe.Name == name
}
