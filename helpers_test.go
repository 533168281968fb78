package main

import (
	"bytes"
	"path/filepath"
	"testing"
)

// useBufferWriters 在测试期间把 stdOut/stdErr 替换为内存 buffer。
func useBufferWriters(t *testing.T) {
	t.Helper()

	prevOut, prevErr := stdOut, stdErr
	stdOut, stdErr = &bytes.Buffer{}, &bytes.Buffer{}
	t.Cleanup(func() {
		stdOut, stdErr = prevOut, prevErr
	})
}

func stdOutBuffer() *bytes.Buffer {
	buf, _ := stdOut.(*bytes.Buffer)
	return buf
}

func stdErrBuffer() *bytes.Buffer {
	buf, _ := stdErr.(*bytes.Buffer)
	return buf
}

// configFixture 返回 internal/config/testdata 下的夹具路径，go test 的工作目录即模块根目录。
func configFixture(t *testing.T, name string) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("internal", "config", "testdata", name))
	if err != nil {
		t.Fatalf("解析夹具路径失败: %v", err)
	}
	return path
}
