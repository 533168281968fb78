package server

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/hubauth/internal/hubauth"
	"github.com/any-hub/hubauth/internal/logging"
)

// AppOptions controls how the Fiber application authenticates grader requests.
type AppOptions struct {
	Logger  *logrus.Logger
	Adapter *hubauth.Adapter
}

const (
	contextKeySession   = "_hubauth_session"
	contextKeyRequestID = "_hubauth_request_id"
)

// NewApp builds a Fiber application with request ids, panic recovery, and the
// grader authorization middleware mounted on the adapter's route prefix.
// Routes are registered separately (see Mount and the routes package).
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Adapter == nil {
		return nil, errors.New("hubauth adapter is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())
	app.Use(opts.Adapter.RemapURL(), RequireGrader(opts.Adapter, opts.Logger))

	return app, nil
}

// requestIDMiddleware 为每个请求生成 request id，并写入响应头 X-Request-ID。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequireGrader 通过 hub cookie 解析用户并校验 graders 白名单：
// 未登录重定向到 hub 登录页，已登录但不在白名单返回 403。
func RequireGrader(adapter *hubauth.Adapter, logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		ctx := requestContext(c)
		// Cookies 返回的字符串指向 fasthttp 的复用缓冲区，离开本次请求前必须复制。
		user := adapter.GetUser(ctx, strings.Clone(c.Cookies(adapter.CookieName())))
		if user == "" {
			return c.Redirect().Status(fiber.StatusFound).To(loginRedirect(adapter.LoginURL(), c.OriginalURL()))
		}

		session := adapter.NewSession()
		if !session.Authenticate(user) {
			logger.WithFields(logging.RequestFields(RequestID(c), c.Path(), user)).
				WithField("action", "authorize").
				Warn("grader required")
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "grader_required",
			})
		}

		c.Locals(contextKeySession, session)
		return c.Next()
	}
}

// loginRedirect 在 hub 登录页后追加 next 参数，登录完成后回到原始地址。
func loginRedirect(loginURL, next string) string {
	sep := "?"
	if strings.Contains(loginURL, "?") {
		sep = "&"
	}
	return loginURL + sep + "next=" + url.QueryEscape(next)
}

func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// SessionFrom returns the grader session stored by RequireGrader.
func SessionFrom(c fiber.Ctx) *hubauth.Session {
	if value := c.Locals(contextKeySession); value != nil {
		if session, ok := value.(*hubauth.Session); ok {
			return session
		}
	}
	return nil
}

// RequestContext exposes the request's context for outbound hub calls.
func RequestContext(c fiber.Ctx) context.Context {
	return requestContext(c)
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
