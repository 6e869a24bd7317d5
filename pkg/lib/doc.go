// Package lib 包含基础设施工具库
//
// 本目录包含与架构组件无关的通用工具库：
//
//   - log: 日志封装（slog 组件化封装、级别映射、ID 截断）
//
// # 与 pkg/ 其他目录的关系
//
// pkg/ 目录包含三类内容：
//
//   - protocol/: 线上协议常量与帧结构（兼容边界）
//   - types/: 公共类型定义（架构核心）
//   - lib/: 基础设施工具库（本目录）
//
// # 使用示例
//
//	import (
//	    "github.com/SocketCluster/agc-state/pkg/lib/log"
//	)
//
//	var logger = log.Logger("core/registry")
package lib
