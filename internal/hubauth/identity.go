package hubauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"k8s.io/apimachinery/pkg/util/cache"

	"github.com/any-hub/hubauth/internal/config"
	"github.com/any-hub/hubauth/internal/logging"
	"github.com/any-hub/hubauth/internal/metrics"
)

// UserModel 是 hub API 返回的用户信息子集。
type UserModel struct {
	Name    string  `json:"name"`
	Admin   bool    `json:"admin"`
	Server  *string `json:"server"`
	Pending *string `json:"pending"`
}

// Identity 将 hub 会话 cookie 解析为用户。未登录时返回 (nil, nil)；
// error 仅表示无法完成校验（网络、token 错误等）。
type Identity interface {
	UserForCookie(ctx context.Context, cookie string) (*UserModel, error)
	// CookieName 是 hub 下发的会话 cookie 名称。
	CookieName() string
	// LoginURL 是未登录用户应被重定向到的 hub 登录页。
	LoginURL() string
}

// HubIdentityOptions 描述 HubIdentity 所需的 hub API 参数。
type HubIdentityOptions struct {
	// APIURL 形如 http://127.0.0.1:8081/hub/api
	APIURL     string
	Token      string
	CookieName string
	LoginURL   string
	// CacheMaxAge 为 0 时关闭缓存。
	CacheMaxAge time.Duration
	Client      *http.Client
	Logger      logrus.FieldLogger
}

// HubIdentityOptionsFromConfig 从解析后的 [HubAuth] 配置构建选项。
func HubIdentityOptionsFromConfig(cfg config.HubAuthConfig) HubIdentityOptions {
	return HubIdentityOptions{
		APIURL:      cfg.HubAPIURL(),
		Token:       cfg.HubAPIToken,
		CookieName:  cfg.HubAPICookie,
		LoginURL:    cfg.LoginURL,
		CacheMaxAge: cfg.CookieCacheMaxAge.DurationValue(),
	}
}

// HubIdentity 通过 hub 的 /authorizations/cookie 接口校验会话 cookie。
// 结果按 cookie 值缓存 CacheMaxAge，同一 cookie 的并发校验只发出一次请求。
type HubIdentity struct {
	opts   HubIdentityOptions
	api    endpoint
	logger logrus.FieldLogger
	cache  *cache.Expiring
	group  singleflight.Group
}

var _ Identity = (*HubIdentity)(nil)

// NewHubIdentity creates a hub-backed identity delegate.
func NewHubIdentity(opts HubIdentityOptions) *HubIdentity {
	return &HubIdentity{
		opts: opts,
		api: endpoint{
			service: metrics.ServiceHub,
			baseURL: opts.APIURL,
			token:   opts.Token,
			client:  opts.Client,
		},
		logger: logging.Component(opts.Logger, "hub_identity"),
		cache:  cache.NewExpiring(),
	}
}

// cachedUser 包装缓存值，nil model 代表 hub 明确返回未登录。
type cachedUser struct {
	model *UserModel
}

func (h *HubIdentity) CookieName() string { return h.opts.CookieName }

func (h *HubIdentity) LoginURL() string { return h.opts.LoginURL }

// UserForCookie 先查缓存，未命中时合并并发请求后访问 hub。
// 只缓存 hub 确认过的用户，未登录的 cookie 不入缓存。
func (h *HubIdentity) UserForCookie(ctx context.Context, cookie string) (*UserModel, error) {
	if cookie == "" {
		return nil, nil
	}
	// 调用方的字符串可能引用复用的请求缓冲区，作为 key 前先复制。
	cookie = strings.Clone(cookie)

	if value, ok := h.cache.Get(cookie); ok {
		if cached, ok := value.(cachedUser); ok {
			return cached.model, nil
		}
	}

	// 合并后的 lookup 不随任一调用方取消，超时由 http.Client 约束。
	lookupCtx := context.WithoutCancel(ctx)
	ch := h.group.DoChan(cookie, func() (interface{}, error) {
		model, err := h.lookup(lookupCtx, cookie)
		if err != nil {
			return nil, err
		}
		if model != nil && h.opts.CacheMaxAge > 0 {
			h.cache.Set(cookie, cachedUser{model: model}, h.opts.CacheMaxAge)
		}
		return cachedUser{model: model}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(cachedUser).model, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *HubIdentity) lookup(ctx context.Context, cookie string) (*UserModel, error) {
	path := fmt.Sprintf("/authorizations/cookie/%s/%s", url.PathEscape(h.opts.CookieName), url.PathEscape(cookie))
	resp, err := h.api.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		defer drain(resp)
		var model UserModel
		if err := json.NewDecoder(resp.Body).Decode(&model); err != nil {
			return nil, fmt.Errorf("decoding hub user model: %w", err)
		}
		if model.Name == "" {
			return nil, nil
		}
		return &model, nil
	case http.StatusNotFound:
		drain(resp)
		return nil, nil
	case http.StatusForbidden:
		body := readText(resp)
		h.logger.WithFields(logging.RemoteFields("identity_lookup", metrics.ServiceHub, "", resp.StatusCode)).
			Warn("hub rejected the API token; check HubAuth.hubapi_token")
		return nil, fmt.Errorf("hub API token rejected: %s %s", reason(resp), body)
	default:
		body := readText(resp)
		return nil, fmt.Errorf("failed to check authorization: %s %s", reason(resp), body)
	}
}

// DisabledIdentity 在 auth_mode = "disabled" 时使用：从不解析出用户，所有请求都会被拒绝。
type DisabledIdentity struct {
	Cookie string
	Login  string
}

var _ Identity = DisabledIdentity{}

// DisabledIdentityFromConfig 保留 cookie 名与登录页，使重定向行为与 hub 模式一致。
func DisabledIdentityFromConfig(cfg config.HubAuthConfig) DisabledIdentity {
	return DisabledIdentity{Cookie: cfg.HubAPICookie, Login: cfg.LoginURL}
}

func (d DisabledIdentity) UserForCookie(context.Context, string) (*UserModel, error) {
	return nil, nil
}

func (d DisabledIdentity) CookieName() string { return d.Cookie }

func (d DisabledIdentity) LoginURL() string { return d.Login }
