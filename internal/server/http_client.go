package server

import (
	"net"
	"net/http"
	"time"

	"github.com/any-hub/hubauth/internal/config"
)

// Shared HTTP transport tunings，hub/proxy API 调用共用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          20,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewRemoteClient 返回访问 hub/proxy API 的共享 http.Client，超时取自 RequestTimeout。
func NewRemoteClient(cfg *config.Config) *http.Client {
	timeout := 30 * time.Second
	if cfg != nil && cfg.Global.RequestTimeout.DurationValue() > 0 {
		timeout = cfg.Global.RequestTimeout.DurationValue()
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
		// hub 的 admin-access 等接口直接返回 Set-Cookie，不跟随跳转以免丢失响应头。
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
