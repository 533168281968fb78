package hubauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/any-hub/hubauth/internal/metrics"
	"github.com/any-hub/hubauth/internal/version"
)

// maxErrorBody 限制错误响应体读取大小，仅用于日志与错误信息。
const maxErrorBody = 64 << 10

// endpoint 描述一个远端 REST 服务：根地址 + token，所有请求带 `Authorization: token <value>`。
type endpoint struct {
	service string
	baseURL string
	token   string
	client  *http.Client
}

// do 发送请求并返回原始响应，调用方负责关闭 Body。body 非 nil 时按 JSON 编码。
func (e endpoint) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s request body: %w", e.service, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", e.service, err)
	}
	req.Header.Set("Authorization", "token "+e.token)
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := e.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		metrics.ObserveRemote(e.service, 0)
		return nil, fmt.Errorf("%s %s%s: %w", method, e.baseURL, path, err)
	}
	metrics.ObserveRemote(e.service, resp.StatusCode)
	return resp, nil
}

// readText 读取并关闭响应体，返回截断后的文本。
func readText(resp *http.Response) string {
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return string(data)
}

// drain 丢弃剩余响应体以便复用连接。
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

// reason 输出类似 "404 Not Found" 的状态描述，对齐 hub 日志格式。
func reason(resp *http.Response) string {
	if resp.Status != "" {
		return resp.Status
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
