package server

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/hubauth/internal/hubauth"
)

// HandlerFactory 根据路由参数构造 handler，参数在 TransformHandler 改写之后传入。
type HandlerFactory func(args map[string]string) fiber.Handler

// Mount 将站内路由加上代理前缀后注册为 GET 路由，返回实际注册的路径。
func Mount(app *fiber.App, prefixer hubauth.Prefixer, routes []hubauth.Route[HandlerFactory]) []string {
	paths := make([]string, 0, len(routes))
	for _, route := range routes {
		transformed := hubauth.TransformHandler(prefixer, route)
		path := fiberPath(transformed.Pattern)
		app.Get(path, transformed.Handler(transformed.Args))
		paths = append(paths, path)
	}
	return paths
}

// fiberPath 去掉根路由的 "/?" 后缀：Fiber 默认非严格路由，尾部斜杠本就可选。
func fiberPath(pattern string) string {
	if trimmed := strings.TrimSuffix(pattern, "/?"); trimmed != pattern {
		if trimmed == "" {
			return "/"
		}
		return trimmed
	}
	return pattern
}
