// Package version 提供 agc-state 的版本信息
//
// 版本兼容性检查以主版本号为准：握手时远端实例上报的主版本号
// 必须与本服务的主版本号一致，否则连接会被拒绝。
package version

import (
	"strconv"
	"strings"
)

// Version 当前发布版本
//
// 进程启动时从该值推导出要求的主版本号，进程生命周期内不变。
const Version = "2.0.0"

// 构建信息（通过 ldflags 注入）
var (
	// GitCommit Git 提交哈希
	GitCommit string

	// BuildDate 构建日期
	BuildDate string
)

// Major 返回当前版本的主版本号
func Major() int {
	head, _, _ := strings.Cut(Version, ".")
	major, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return major
}

// Info 返回完整版本信息字符串
func Info() string {
	info := "agc-state " + Version
	if GitCommit != "" {
		info += " (" + GitCommit[:min(8, len(GitCommit))] + ")"
	}
	if BuildDate != "" {
		info += " built " + BuildDate
	}
	return info
}
