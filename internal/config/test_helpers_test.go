package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testConfigPath 指向 testdata 下的 TOML 夹具。
func testConfigPath(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join("testdata", name)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("夹具 %s 不存在: %v", name, err)
	}
	return path
}

// writeTempConfig 把内联 TOML 写入临时目录，去掉首尾空白以便使用多行字符串。
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hubauth.toml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}
