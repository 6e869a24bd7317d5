// Package netaddr 推导接入实例的有效网络地址
//
// 地址来源按优先级依次为：加入载荷显式携带的 instanceIp、
// 受信任转发头的第一个逗号分隔值、传输层远端地址。
// 除 IPv6 字面量在 URI 中加方括号外不做任何校验，
// 畸形输入原样存储、原样输出。
package netaddr

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/SocketCluster/agc-state/pkg/types"
)

// Resolver 实例地址解析器
type Resolver struct {
	// ForwardedForHeader 受信任的转发头名称，为空时禁用
	ForwardedForHeader string
}

// Resolve 返回应记录的实例地址
//
// fromPayload 标记地址是否来自载荷：仅此时记录地址族，
// 来自转发头或传输层的地址不推断地址族。
func (r *Resolver) Resolve(payloadIP string, header http.Header, remoteAddr string) (ip string, fromPayload bool) {
	if payloadIP != "" {
		return payloadIP, true
	}

	if r.ForwardedForHeader != "" {
		if v := header.Get(r.ForwardedForHeader); v != "" {
			first, _, _ := strings.Cut(v, ",")
			return strings.TrimSpace(first), false
		}
	}

	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		// 不含端口的地址原样使用
		return remoteAddr, false
	}
	return host, false
}

// FormatHost 格式化地址用于 URI 嵌入
//
// 仅当记录的地址族为 IPv6 时加方括号；地址族未设置的
// IPv6 地址会按 IPv4 样式输出，这是有意保留的既有行为。
func FormatHost(ip string, family types.IPFamily) string {
	if family == types.IPv6 {
		return "[" + ip + "]"
	}
	return ip
}

// InstanceURI 构造 broker 实例的连接 URI
func InstanceURI(inst types.Instance) string {
	scheme := "ws"
	if inst.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, FormatHost(inst.IP, inst.IPFamily), inst.Port)
}
