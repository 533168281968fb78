package hubauthtest

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/hubauth/internal/config"
	"github.com/any-hub/hubauth/internal/hubauth"
)

// Config 返回一份指向 FakeHub 的已解析配置，hub 与 proxy 共用同一个地址。
func (f *FakeHub) Config() *config.Config {
	return &config.Config{
		Global: config.GlobalConfig{
			ListenIP:       "127.0.0.1",
			ListenPort:     5005,
			CourseID:       "course101",
			LogLevel:       "info",
			RequestTimeout: config.Duration(5 * time.Second),
		},
		HubAuth: config.HubAuthConfig{
			AuthMode:      config.AuthModeHub,
			Graders:       []string{"instructor1", "instructor2"},
			HubBaseURL:    "http://hub.example.edu",
			HubAPIBaseURL: f.URL,
			HubAPIToken:   HubToken,
			HubAPICookie:  CookieName,
			ProxyBaseURL:  f.URL,
			ProxyToken:    ProxyToken,
			RemapURL:      "/hub/nbgrader/course101",
			LoginURL:      "/hub/login",
		},
	}
}

// NewAdapter 使用 HubIdentity 构建并注册 Adapter，失败时直接终止测试。
func (f *FakeHub) NewAdapter(t *testing.T, cfg *config.Config, logger logrus.FieldLogger) *hubauth.Adapter {
	t.Helper()

	opts := hubauth.HubIdentityOptionsFromConfig(cfg.HubAuth)
	opts.Client = f.Client()
	opts.Logger = logger

	adapter, err := hubauth.New(context.Background(), hubauth.Options{
		Config:   cfg,
		Identity: hubauth.NewHubIdentity(opts),
		Client:   f.Client(),
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("hubauth.New failed: %v", err)
	}
	return adapter
}
