package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// 环境变量仅作为 token 的默认值，配置文件中显式写出的值优先。
const (
	EnvHubAPIToken = "JPY_API_TOKEN"
	EnvProxyToken  = "CONFIGPROXY_AUTH_TOKEN"
)

// Load 读取并解析 TOML 配置文件，拒绝已废弃的字段，并注入派生默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	if err := rejectLegacyOptions(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyHubAuthDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenIP", "127.0.0.1")
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("RequestTimeout", "30s")

	v.SetDefault("HubAuth.auth_mode", AuthModeHub)
	v.SetDefault("HubAuth.graders", []string{})
	v.SetDefault("HubAuth.hubapi_token", os.Getenv(EnvHubAPIToken))
	v.SetDefault("HubAuth.hubapi_cookie", "jupyter-hub-token")
	v.SetDefault("HubAuth.proxy_token", os.Getenv(EnvProxyToken))
	v.SetDefault("HubAuth.login_url", "/hub/login")
	v.SetDefault("HubAuth.cookie_cache_max_age", "5m")
}

func applyGlobalDefaults(g *GlobalConfig) {
	g.ListenIP = strings.TrimSpace(g.ListenIP)
	if g.ListenIP == "" {
		g.ListenIP = "127.0.0.1"
	}
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	g.CourseID = strings.TrimSpace(g.CourseID)
	if g.RequestTimeout.DurationValue() == 0 {
		g.RequestTimeout = Duration(30 * time.Second)
	}
}

// applyHubAuthDefaults 计算依赖 ListenIP/CourseID 的默认地址，并做字段规整。
func applyHubAuthDefaults(cfg *Config) {
	h := &cfg.HubAuth
	ip := cfg.Global.ListenIP

	h.AuthMode = strings.ToLower(strings.TrimSpace(h.AuthMode))
	if h.AuthMode == "" {
		h.AuthMode = AuthModeHub
	}
	if h.HubBaseURL == "" {
		h.HubBaseURL = fmt.Sprintf("http://%s:8000", ip)
	}
	if h.HubAPIBaseURL == "" {
		h.HubAPIBaseURL = fmt.Sprintf("http://%s:8081", ip)
	}
	if h.ProxyBaseURL == "" {
		h.ProxyBaseURL = fmt.Sprintf("http://%s:8001", ip)
	}
	h.HubBaseURL = strings.TrimRight(h.HubBaseURL, "/")
	h.HubAPIBaseURL = strings.TrimRight(h.HubAPIBaseURL, "/")
	h.ProxyBaseURL = strings.TrimRight(h.ProxyBaseURL, "/")

	if h.HubAPICookie == "" {
		h.HubAPICookie = "jupyter-hub-token"
	}
	if h.LoginURL == "" {
		h.LoginURL = "/hub/login"
	}
	if h.RemapURL == "" {
		h.RemapURL = "/hub/nbgrader/" + cfg.Global.CourseID
	}
	h.RemapURL = strings.TrimRight(h.RemapURL, "/")

	if h.NotebookURLPrefix != nil {
		prefix := strings.Trim(*h.NotebookURLPrefix, "/")
		if prefix == "" {
			h.NotebookURLPrefix = nil
		} else {
			h.NotebookURLPrefix = &prefix
		}
	}

	h.ConnectIP = strings.TrimSpace(h.ConnectIP)
	h.NotebookServerUser = strings.TrimSpace(h.NotebookServerUser)
	if h.CookieCacheMaxAge.DurationValue() < 0 {
		h.CookieCacheMaxAge = Duration(0)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
