package routes

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/any-hub/hubauth/internal/metrics"
	"github.com/any-hub/hubauth/internal/version"
)

// RegisterDiagnostics 暴露 /-/healthz 与 /-/metrics，不经过 grader 鉴权，也不注册到 proxy。
func RegisterDiagnostics(app *fiber.App) {
	if app == nil {
		return
	}

	app.Get("/-/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"version": version.Full(),
		})
	})

	app.Get("/-/metrics", adaptor.HTTPHandler(metrics.Handler()))
}
