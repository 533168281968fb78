package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.ListenIP == "" {
		return newFieldError("Global.ListenIP", "不能为空")
	}
	if g.CourseID == "" {
		return newFieldError("Global.CourseID", "不能为空")
	}
	if strings.Contains(g.CourseID, "/") {
		return newFieldError("Global.CourseID", "不允许包含 /")
	}
	if g.RequestTimeout.DurationValue() <= 0 {
		return newFieldError("Global.RequestTimeout", "必须大于 0")
	}

	h := c.HubAuth
	switch h.AuthMode {
	case AuthModeHub, AuthModeDisabled:
	default:
		return newFieldError(hubAuthField("auth_mode"), "仅支持 hub/disabled")
	}

	baseURLs := []struct {
		name string
		raw  string
	}{
		{name: "hub_base_url", raw: h.HubBaseURL},
		{name: "hubapi_base_url", raw: h.HubAPIBaseURL},
		{name: "proxy_base_url", raw: h.ProxyBaseURL},
	}
	for _, item := range baseURLs {
		if err := validateBaseURL(item.raw); err != nil {
			return newFieldError(hubAuthField(item.name), err.Error())
		}
	}

	if h.HubAPICookie == "" {
		return newFieldError(hubAuthField("hubapi_cookie"), "不能为空")
	}
	if h.RemapURL == "" {
		return newFieldError(hubAuthField("remap_url"), "不能为根路径")
	}
	if !strings.HasPrefix(h.RemapURL, "/") {
		return newFieldError(hubAuthField("remap_url"), "必须以 / 开头")
	}
	if h.CookieCacheMaxAge.DurationValue() < 0 {
		return newFieldError(hubAuthField("cookie_cache_max_age"), "不能为负数")
	}

	seen := make(map[string]struct{}, len(h.Graders))
	for _, grader := range h.Graders {
		if strings.TrimSpace(grader) == "" {
			return newFieldError(hubAuthField("graders"), "不允许空用户名")
		}
		if _, exists := seen[grader]; exists {
			return newFieldError(hubAuthField("graders"), fmt.Sprintf("重复: %s", grader))
		}
		seen[grader] = struct{}{}
	}

	return nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return errors.New("缺少地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	return nil
}
