// Package gate 实现握手阶段的准入检查
//
// 包含三道闸门：共享密钥认证、主版本兼容性检查、启动就绪
// 检查。前两道在连接升级前执行一次，拒绝即中止握手；就绪
// 检查仅作用于 workerJoin 过程，拒绝不关闭连接，远端可稍后
// 重试。所有拒绝都以类型化错误表达并计入有界拒绝记录。
package gate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/SocketCluster/agc-state/pkg/lib/log"
	"github.com/SocketCluster/agc-state/pkg/protocol"
	"github.com/SocketCluster/agc-state/pkg/types"
)

var logger = log.Logger("cluster/gate")

// semverPattern 匹配 major.minor.patch 形状的版本号
var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// ParseMajor 解析语义化版本的主版本号
//
// 版本号不满足 major.minor.patch 形状时视为不可解析。
func ParseMajor(version string) (int, bool) {
	if !semverPattern.MatchString(version) {
		return 0, false
	}
	head, _, _ := strings.Cut(version, ".")
	major, err := strconv.Atoi(head)
	if err != nil {
		return 0, false
	}
	return major, true
}

// CheckVersion 按主版本决策表检查兼容性
//
// 返回 nil 表示接受。拒绝信息按不匹配方向给出指引：
// 远端落后时要求升级远端，服务落后时要求升级服务，
// 版本或实例类型不可解析时按过时组件处理。
func CheckVersion(requiredMajor int, reportedVersion string, instanceType types.InstanceType) *protocol.Error {
	major, ok := ParseMajor(reportedVersion)
	if !ok || !instanceType.Valid() {
		return protocol.NewError(protocol.ErrNameCompatibility,
			"The remote instance is obsolete and incompatible with this state server. Please upgrade it to version ^%d.0.0",
			requiredMajor)
	}

	switch {
	case major == requiredMajor:
		return nil
	case major > requiredMajor:
		return protocol.NewError(protocol.ErrNameCompatibility,
			"This state server is incompatible with the %s instance. Please upgrade the state server to version ^%d.0.0",
			instanceType, major)
	default:
		return protocol.NewError(protocol.ErrNameCompatibility,
			"The %s instance is incompatible with this state server. Please upgrade it to version ^%d.0.0",
			instanceType, requiredMajor)
	}
}
