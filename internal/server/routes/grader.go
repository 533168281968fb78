package routes

import (
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/hubauth/internal/hubauth"
	"github.com/any-hub/hubauth/internal/logging"
	"github.com/any-hub/hubauth/internal/server"
)

// GraderRoutes 返回站内（未加前缀）的 grader 路由表，由 server.Mount 统一加上 remap_url。
func GraderRoutes(adapter *hubauth.Adapter, logger *logrus.Logger) []hubauth.Route[server.HandlerFactory] {
	return []hubauth.Route[server.HandlerFactory]{
		{Pattern: "/", Handler: redirectHandler, Args: map[string]string{"url": "/assignments"}},
		{Pattern: "/assignments", Handler: assignmentsHandler(adapter)},
		{Pattern: "/notebook/*", Handler: notebookHandler(adapter, logger)},
	}
}

// RegisterGraderRoutes 挂载 grader 路由，鉴权由 server.NewApp 中的中间件完成。
func RegisterGraderRoutes(app *fiber.App, adapter *hubauth.Adapter, logger *logrus.Logger) []string {
	if app == nil || adapter == nil {
		return nil
	}
	return server.Mount(app, adapter, GraderRoutes(adapter, logger))
}

func redirectHandler(args map[string]string) fiber.Handler {
	target := args["url"]
	return func(c fiber.Ctx) error {
		return c.Redirect().Status(fiber.StatusFound).To(target)
	}
}

func assignmentsHandler(adapter *hubauth.Adapter) server.HandlerFactory {
	return func(map[string]string) fiber.Handler {
		return func(c fiber.Ctx) error {
			session := server.SessionFrom(c)
			if session == nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "session_missing"})
			}
			return c.JSON(fiber.Map{
				"user":                 session.User(),
				"course_id":            adapter.CourseID(),
				"notebook_server_user": adapter.NotebookServerUser(),
			})
		}
	}
}

// notebookHandler 确保目标 notebook server 可用，必要时下发 admin-access cookie，再重定向到 hub 上的 notebook。
func notebookHandler(adapter *hubauth.Adapter, logger *logrus.Logger) server.HandlerFactory {
	return func(map[string]string) fiber.Handler {
		return func(c fiber.Ctx) error {
			session := server.SessionFrom(c)
			if session == nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "session_missing"})
			}

			ctx := server.RequestContext(c)
			if !session.NotebookServerExists(ctx) {
				logger.WithFields(logging.RequestFields(server.RequestID(c), c.Path(), session.User())).
					WithField("action", "notebook_redirect").
					Warn("notebook server unavailable")
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "notebook_server_unavailable",
				})
			}

			if cookie := adapter.NotebookServerCookie(ctx); cookie != nil {
				c.Cookie(&fiber.Cookie{
					Name:     cookie.Name,
					Value:    cookie.Value,
					Path:     cookie.Path,
					HTTPOnly: true,
				})
			}

			return c.Redirect().Status(fiber.StatusFound).To(session.NotebookURL(c.Params("*")))
		}
	}
}
