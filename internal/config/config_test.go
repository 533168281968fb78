package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	t.Setenv(EnvHubAPIToken, "")
	t.Setenv(EnvProxyToken, "")

	cfg, err := Load(testConfigPath(t, "valid.toml"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	h := cfg.HubAuth
	if h.AuthMode != AuthModeHub {
		t.Fatalf("auth_mode 默认应为 hub，得到 %s", h.AuthMode)
	}
	if h.HubBaseURL != "http://127.0.0.1:8000" {
		t.Fatalf("hub_base_url 默认值错误: %s", h.HubBaseURL)
	}
	if h.HubAPIBaseURL != "http://127.0.0.1:8081" {
		t.Fatalf("hubapi_base_url 默认值错误: %s", h.HubAPIBaseURL)
	}
	if h.ProxyBaseURL != "http://127.0.0.1:8001" {
		t.Fatalf("proxy_base_url 默认值错误: %s", h.ProxyBaseURL)
	}
	if h.HubAPICookie != "jupyter-hub-token" {
		t.Fatalf("hubapi_cookie 默认值错误: %s", h.HubAPICookie)
	}
	if h.RemapURL != "/hub/nbgrader/course101" {
		t.Fatalf("remap_url 应由 CourseID 派生，得到 %s", h.RemapURL)
	}
	if h.LoginURL != "/hub/login" {
		t.Fatalf("login_url 默认值错误: %s", h.LoginURL)
	}
	if h.NotebookURLPrefix != nil {
		t.Fatalf("未配置 notebook_url_prefix 时应为 nil")
	}
	if h.CookieCacheMaxAge.DurationValue() != 5*time.Minute {
		t.Fatalf("cookie_cache_max_age 默认应为 5m，得到 %s", h.CookieCacheMaxAge.DurationValue())
	}
	if h.HubAPIToken != "hub-secret" || h.ProxyToken != "proxy-secret" {
		t.Fatalf("token 应从配置读取")
	}
	if cfg.Global.RequestTimeout.DurationValue() != 30*time.Second {
		t.Fatalf("RequestTimeout 默认应为 30s")
	}
	if cfg.ProxyTarget() != "http://127.0.0.1:5005" {
		t.Fatalf("proxy target 错误: %s", cfg.ProxyTarget())
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	cfg, err := Load(testConfigPath(t, "overrides.toml"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	h := cfg.HubAuth
	if h.HubBaseURL != "https://hub.example.edu" {
		t.Fatalf("hub_base_url 应去掉尾部斜杠，得到 %s", h.HubBaseURL)
	}
	if h.HubAPIURL() != "http://hub-internal:8081/hub/api" {
		t.Fatalf("hub api url 错误: %s", h.HubAPIURL())
	}
	if h.RemapURL != "/hub/grading/course101" {
		t.Fatalf("remap_url 应去掉尾部斜杠，得到 %s", h.RemapURL)
	}
	if h.NotebookURLPrefix == nil || *h.NotebookURLPrefix != "Documents/notebooks" {
		t.Fatalf("notebook_url_prefix 应去掉首尾斜杠")
	}
	if h.CookieCacheMaxAge.DurationValue() != time.Minute {
		t.Fatalf("整数秒应被解析为 Duration，得到 %s", h.CookieCacheMaxAge.DurationValue())
	}
	if cfg.Global.RequestTimeout.DurationValue() != 5*time.Second {
		t.Fatalf("RequestTimeout 解析错误")
	}
	if cfg.ProxyTarget() != "http://172.16.0.9:9000" {
		t.Fatalf("connect_ip 应优先于 ListenIP，得到 %s", cfg.ProxyTarget())
	}
	if h.NotebookServerUser != "instructor-shared" {
		t.Fatalf("notebook_server_user 解析错误")
	}
}

func TestDerivedURLsFollowListenIP(t *testing.T) {
	path := writeTempConfig(t, `
ListenIP = "192.168.1.20"
CourseID = "stats"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.HubAuth.HubBaseURL != "http://192.168.1.20:8000" {
		t.Fatalf("hub_base_url 应跟随 ListenIP，得到 %s", cfg.HubAuth.HubBaseURL)
	}
	if cfg.HubAuth.ProxyBaseURL != "http://192.168.1.20:8001" {
		t.Fatalf("proxy_base_url 应跟随 ListenIP，得到 %s", cfg.HubAuth.ProxyBaseURL)
	}
}

func TestIsGrader(t *testing.T) {
	h := HubAuthConfig{Graders: []string{"alice", "bob"}}
	testCases := []struct {
		user string
		want bool
	}{
		{"alice", true},
		{"bob", true},
		{"mallory", false},
		{"Alice", false},
		{"", false},
	}
	for _, tc := range testCases {
		if got := h.IsGrader(tc.user); got != tc.want {
			t.Fatalf("IsGrader(%q) = %v, want %v", tc.user, got, tc.want)
		}
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Global.ListenPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ListenPort 超出范围应当报错")
	}
}

func TestValidateAuthMode(t *testing.T) {
	testCases := []struct {
		name      string
		mode      string
		shouldErr bool
	}{
		{"hub ok", AuthModeHub, false},
		{"disabled ok", AuthModeDisabled, false},
		{"unknown", "oauth", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.HubAuth.AuthMode = tc.mode
			err := cfg.Validate()
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error for mode %q", tc.mode)
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error for mode %q: %v", tc.mode, err)
			}
		})
	}
}

func TestValidateRejectsBadBaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.HubAuth.ProxyBaseURL = "ftp://proxy:8001"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("非 http(s) 的 proxy_base_url 应报错")
	}
}

func TestValidateReportsFirstBadBaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.HubAuth.HubBaseURL = "hub:8000"
	cfg.HubAuth.HubAPIBaseURL = "ftp://hub:8081"
	cfg.HubAuth.ProxyBaseURL = ""

	for i := 0; i < 20; i++ {
		var fieldErr FieldError
		if err := cfg.Validate(); !errors.As(err, &fieldErr) {
			t.Fatalf("期望 FieldError，得到 %v", err)
		}
		if fieldErr.Field != "HubAuth.hub_base_url" {
			t.Fatalf("多个地址非法时应固定报告 hub_base_url，第 %d 次得到 %s", i, fieldErr.Field)
		}
	}
}

func TestValidateRejectsDuplicateGraders(t *testing.T) {
	cfg := validConfig()
	cfg.HubAuth.Graders = []string{"alice", "alice"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("重复的 grader 应报错")
	}
}

func TestValidateRejectsRootRemapURL(t *testing.T) {
	cfg := validConfig()
	cfg.HubAuth.RemapURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("空 remap_url 应报错")
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenIP:       "127.0.0.1",
			ListenPort:     5000,
			CourseID:       "course101",
			RequestTimeout: Duration(time.Second),
		},
		HubAuth: HubAuthConfig{
			AuthMode:      AuthModeHub,
			Graders:       []string{"alice"},
			HubBaseURL:    "http://127.0.0.1:8000",
			HubAPIBaseURL: "http://127.0.0.1:8081",
			ProxyBaseURL:  "http://127.0.0.1:8001",
			HubAPICookie:  "jupyter-hub-token",
			RemapURL:      "/hub/nbgrader/course101",
			LoginURL:      "/hub/login",
		},
	}
}
