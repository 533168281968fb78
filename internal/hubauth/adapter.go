package hubauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/hubauth/internal/config"
	"github.com/any-hub/hubauth/internal/logging"
	"github.com/any-hub/hubauth/internal/metrics"
)

// Options 汇总构建 Adapter 所需依赖，Identity 由调用方根据 auth_mode 显式选择。
type Options struct {
	Config   *config.Config
	Identity Identity
	Client   *http.Client
	Logger   logrus.FieldLogger
}

// Adapter 是面向 grader 服务的 JupyterHub 适配层，构建后只读，可被多个请求并发共享。
type Adapter struct {
	settings config.HubAuthConfig
	courseID string
	target   string

	identity Identity
	hubAPI   endpoint
	proxy    endpoint
	logger   logrus.FieldLogger
}

// New 构建 Adapter 并立即向 proxy 注册路由；注册失败时返回错误，调用方应终止启动。
func New(ctx context.Context, opts Options) (*Adapter, error) {
	adapter, err := newAdapter(opts)
	if err != nil {
		return nil, err
	}
	if err := adapter.RegisterWithProxy(ctx); err != nil {
		return nil, err
	}
	return adapter, nil
}

// newAdapter 只做依赖装配，不产生任何出站请求。
func newAdapter(opts Options) (*Adapter, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Identity == nil {
		return nil, errors.New("identity is required")
	}

	settings := opts.Config.HubAuth
	settings.Graders = append([]string(nil), settings.Graders...)

	return &Adapter{
		settings: settings,
		courseID: opts.Config.Global.CourseID,
		target:   opts.Config.ProxyTarget(),
		identity: opts.Identity,
		hubAPI: endpoint{
			service: metrics.ServiceHub,
			baseURL: settings.HubAPIBaseURL,
			token:   settings.HubAPIToken,
			client:  opts.Client,
		},
		proxy: endpoint{
			service: metrics.ServiceProxy,
			baseURL: settings.ProxyBaseURL,
			token:   settings.ProxyToken,
			client:  opts.Client,
		},
		logger: logging.Component(opts.Logger, "hubauth"),
	}, nil
}

// RegistrationError 表示 proxy 未以 201 响应路由注册，常见原因是 proxy_token 错误。
type RegistrationError struct {
	StatusCode int
	Body       string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("Error while trying to add JupyterHub route. %d: %s", e.StatusCode, e.Body)
}

// RegisterWithProxy 将 remap_url 指向本进程地址：POST /api/routes<remap_url>，仅 201 视为成功。
func (a *Adapter) RegisterWithProxy(ctx context.Context) error {
	a.logger.WithFields(logrus.Fields{
		"action": "proxy_register",
		"route":  a.settings.RemapURL,
		"target": a.target,
	}).Infof("Proxying %s --> %s", a.settings.RemapURL, a.target)

	resp, err := a.proxy.do(ctx, http.MethodPost, "/api/routes"+a.settings.RemapURL, map[string]string{
		"target": a.target,
	})
	if err != nil {
		return fmt.Errorf("registering route with proxy: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return &RegistrationError{StatusCode: resp.StatusCode, Body: readText(resp)}
	}
	drain(resp)
	return nil
}

// LoginURL 是 hub 登录页地址，未登录请求会被重定向至此。
func (a *Adapter) LoginURL() string {
	return a.identity.LoginURL()
}

// CookieName 是需要转交给 Identity 校验的 hub 会话 cookie 名称。
func (a *Adapter) CookieName() string {
	return a.identity.CookieName()
}

// RemapURL 返回注册到 proxy 的路由前缀。
func (a *Adapter) RemapURL() string {
	return a.settings.RemapURL
}

// CourseID 返回当前服务对应的课程标识。
func (a *Adapter) CourseID() string {
	return a.courseID
}

// NotebookServerUser 返回托管 notebook 的用户覆盖项，未配置时为空。
func (a *Adapter) NotebookServerUser() string {
	return a.settings.NotebookServerUser
}

// GetUser 将 hub 会话 cookie 解析为用户名，未登录或校验失败时返回空字符串。
func (a *Adapter) GetUser(ctx context.Context, cookie string) string {
	model, err := a.identity.UserForCookie(ctx, cookie)
	if err != nil {
		a.logger.WithFields(logrus.Fields{"action": "get_user"}).WithError(err).Warn("hub cookie verification failed")
		return ""
	}
	if model == nil {
		return ""
	}
	return model.Name
}
