package hubauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/hubauth/internal/logging"
	"github.com/any-hub/hubauth/internal/metrics"
)

// NotebookCookie 是访问他人 notebook server 所需的 cookie，作用域为 /user/<name>。
type NotebookCookie struct {
	Name  string
	Value string
	Path  string
}

// NotebookServerExists 确认目标用户的 notebook server 正在运行或启动中；未运行时请求 hub 启动。
// 任意一步失败都会告警并返回 false。
func (s *Session) NotebookServerExists(ctx context.Context) bool {
	a := s.adapter
	user := s.targetUser()
	if user == "" {
		a.logger.WithFields(logrus.Fields{"action": "notebook_server"}).
			Warn("no notebook server user is known for this request")
		return false
	}

	escaped := url.PathEscape(user)
	resp, err := a.hubAPI.do(ctx, http.MethodGet, "/hub/api/users/"+escaped, nil)
	if err != nil {
		a.logger.WithFields(logging.RemoteFields("notebook_server", metrics.ServiceHub, user, 0)).
			WithError(err).Warnf("Could not access information about user %s", user)
		return false
	}
	if resp.StatusCode != http.StatusOK {
		drain(resp)
		a.logger.WithFields(logging.RemoteFields("notebook_server", metrics.ServiceHub, user, resp.StatusCode)).
			Warnf("Could not access information about user %s (response: %s)", user, reason(resp))
		return false
	}

	var model UserModel
	err = json.NewDecoder(resp.Body).Decode(&model)
	drain(resp)
	if err != nil {
		a.logger.WithFields(logging.RemoteFields("notebook_server", metrics.ServiceHub, user, resp.StatusCode)).
			WithError(err).Warnf("Could not decode information about user %s", user)
		return false
	}

	if model.Server != nil || (model.Pending != nil && *model.Pending == "spawn") {
		return true
	}

	resp, err = a.hubAPI.do(ctx, http.MethodPost, "/hub/api/users/"+escaped+"/server", nil)
	if err != nil {
		a.logger.WithFields(logging.RemoteFields("notebook_spawn", metrics.ServiceHub, user, 0)).
			WithError(err).Warnf("Could not start server for user %s", user)
		return false
	}
	drain(resp)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		a.logger.WithFields(logging.RemoteFields("notebook_spawn", metrics.ServiceHub, user, resp.StatusCode)).
			Warnf("Could not start server for user %s (response: %s)", user, reason(resp))
		return false
	}
	return true
}

// NotebookServerCookie 为 notebook_server_user 申请 admin-access，并提取 hub 下发的作用域 cookie。
// 未配置 notebook_server_user 时无需申请，返回 nil；申请失败同样返回 nil。
func (a *Adapter) NotebookServerCookie(ctx context.Context) *NotebookCookie {
	user := a.settings.NotebookServerUser
	if user == "" {
		return nil
	}

	resp, err := a.hubAPI.do(ctx, http.MethodPost, "/hub/api/users/"+url.PathEscape(user)+"/admin-access", nil)
	if err != nil {
		a.logger.WithFields(logging.RemoteFields("admin_access", metrics.ServiceHub, user, 0)).
			WithError(err).Warnf("Failed to gain admin access to user %s's server", user)
		return nil
	}
	drain(resp)
	if resp.StatusCode != http.StatusOK {
		a.logger.WithFields(logging.RemoteFields("admin_access", metrics.ServiceHub, user, resp.StatusCode)).
			Warnf("Failed to gain admin access to user %s's server (response: %s)", user, reason(resp))
		return nil
	}

	name := fmt.Sprintf("%s-%s", a.settings.HubAPICookie, user)
	for _, cookie := range resp.Cookies() {
		if cookie.Name != name {
			continue
		}
		return &NotebookCookie{
			Name:  name,
			Value: decodeCookieValue(cookie.Value),
			Path:  "/user/" + user,
		}
	}

	a.logger.WithFields(logging.RemoteFields("admin_access", metrics.ServiceHub, user, resp.StatusCode)).
		Warnf("hub granted admin access but did not set cookie %s", name)
	return nil
}

// decodeCookieValue 去掉 tornado 安全 cookie 外层的双引号并做百分号解码。
func decodeCookieValue(raw string) string {
	if len(raw) >= 2 && strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) {
		raw = raw[1 : len(raw)-1]
	}
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// NotebookURL 拼出经由 hub 访问 notebook 的地址，notebook_url_prefix 存在时插入到相对路径之前。
func (s *Session) NotebookURL(relativePath string) string {
	if prefix := s.adapter.settings.NotebookURLPrefix; prefix != nil {
		relativePath = *prefix + "/" + relativePath
	}
	return fmt.Sprintf("%s/user/%s/notebooks/%s", s.adapter.settings.HubBaseURL, s.targetUser(), relativePath)
}
