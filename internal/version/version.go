// Package version 保存构建时注入的版本信息。
package version

import "fmt"

// Name 是二进制与出站 User-Agent 使用的产品名。
const Name = "hubauth"

// Version/Commit 可在构建时通过 -ldflags 注入，默认使用开发占位符。
var (
	Version = "0.1.0"
	Commit  = "dev"
)

// Full 返回便于 CLI 打印的完整版本信息。
func Full() string {
	return fmt.Sprintf("%s %s (%s)", Name, Version, Commit)
}

// UserAgent 用于访问 hub 与 proxy 的请求，便于在对端日志中识别来源。
func UserAgent() string {
	return Name + "/" + Version
}
