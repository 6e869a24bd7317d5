package gate

import (
	"github.com/SocketCluster/agc-state/pkg/protocol"
)

// CheckAuthKey 校验共享连接密钥
//
// 未配置密钥时检查被禁用，始终接受。配置后握手查询参数
// 必须完全匹配，否则返回 AuthenticationError。
func CheckAuthKey(configured, supplied string) *protocol.Error {
	if configured == "" {
		return nil
	}
	if supplied == configured {
		return nil
	}
	return protocol.NewError(protocol.ErrNameAuthentication,
		"Cannot connect to the state server without providing a valid authKey as a URL query argument")
}
