package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// 鉴权模式：hub 走 JupyterHub cookie 校验，disabled 拒绝所有请求。
const (
	AuthModeHub      = "hub"
	AuthModeDisabled = "disabled"
)

// GlobalConfig 描述进程级参数：监听地址、课程标识、日志与出站超时。
type GlobalConfig struct {
	ListenIP       string   `mapstructure:"ListenIP"`
	ListenPort     int      `mapstructure:"ListenPort"`
	CourseID       string   `mapstructure:"CourseID"`
	LogLevel       string   `mapstructure:"LogLevel"`
	LogFilePath    string   `mapstructure:"LogFilePath"`
	LogMaxSize     int      `mapstructure:"LogMaxSize"`
	LogMaxBackups  int      `mapstructure:"LogMaxBackups"`
	LogCompress    bool     `mapstructure:"LogCompress"`
	RequestTimeout Duration `mapstructure:"RequestTimeout"`
}

// HubAuthConfig 是 [HubAuth] 表解析后的结果。Load 返回后视为只读，
// 由 hubauth 包直接读取，不存在运行期间的字段联动。
type HubAuthConfig struct {
	AuthMode           string   `mapstructure:"auth_mode"`
	Graders            []string `mapstructure:"graders"`
	HubBaseURL         string   `mapstructure:"hub_base_url"`
	HubAPIBaseURL      string   `mapstructure:"hubapi_base_url"`
	HubAPIToken        string   `mapstructure:"hubapi_token"`
	HubAPICookie       string   `mapstructure:"hubapi_cookie"`
	ProxyBaseURL       string   `mapstructure:"proxy_base_url"`
	ProxyToken         string   `mapstructure:"proxy_token"`
	NotebookURLPrefix  *string  `mapstructure:"notebook_url_prefix"`
	RemapURL           string   `mapstructure:"remap_url"`
	ConnectIP          string   `mapstructure:"connect_ip"`
	NotebookServerUser string   `mapstructure:"notebook_server_user"`
	LoginURL           string   `mapstructure:"login_url"`
	CookieCacheMaxAge  Duration `mapstructure:"cookie_cache_max_age"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global  GlobalConfig  `mapstructure:",squash"`
	HubAuth HubAuthConfig `mapstructure:"HubAuth"`
}

// HubAPIURL 返回 hub REST API 的根路径，供 cookie 校验委托使用。
func (h HubAuthConfig) HubAPIURL() string {
	return h.HubAPIBaseURL + "/hub/api"
}

// IsGrader 判断用户名是否在 graders 白名单中。
func (h HubAuthConfig) IsGrader(user string) bool {
	if user == "" {
		return false
	}
	for _, grader := range h.Graders {
		if grader == user {
			return true
		}
	}
	return false
}

// ConnectHost 返回注册到 proxy 的主机地址，connect_ip 优先。
func (c *Config) ConnectHost() string {
	if c.HubAuth.ConnectIP != "" {
		return c.HubAuth.ConnectIP
	}
	return c.Global.ListenIP
}

// ProxyTarget 输出 proxy 路由表中的 target，例如 http://10.0.0.5:5000。
func (c *Config) ProxyTarget() string {
	return fmt.Sprintf("http://%s:%d", c.ConnectHost(), c.Global.ListenPort)
}

// TokenSources 汇总 token 是否已配置，仅用于启动日志，避免输出明文。
func (c *Config) TokenSources() map[string]bool {
	return map[string]bool{
		"hubapi_token": c.HubAuth.HubAPIToken != "",
		"proxy_token":  c.HubAuth.ProxyToken != "",
	}
}
