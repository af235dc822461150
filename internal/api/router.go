package api

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"careerlink-auth/internal/model"
	"careerlink-auth/internal/service"
)

type RouterConfig struct {
	ServiceName         string
	RateLimitMax        int
	RateLimitExpiration time.Duration
}

func NewApp(authService service.AuthService, cfg RouterConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      cfg.ServiceName,
		ErrorHandler: errorHandler,
	})
	app.Use(otelfiber.Middleware())
	app.Use(PrometheusMiddleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.ServiceName})
	})

	app.Get(metricsPath, adaptor.HTTPHandler(promhttp.Handler()))

	SetupRoutes(app, authService, cfg)

	return app
}

func SetupRoutes(app *fiber.App, authService service.AuthService, cfg RouterConfig) {
	authHandler := NewAuthHandler(authService)
	userHandler := NewUserHandler(authService)

	protect := Protect(authService)
	limit := RateLimit(cfg.RateLimitMax, cfg.RateLimitExpiration)

	authRoutes := app.Group("/auth")
	authRoutes.Post("/signup", authHandler.Signup)
	authRoutes.Post("/login", limit, authHandler.Login)
	authRoutes.Get("/me", protect, authHandler.Me)
	authRoutes.Patch("/change-password", protect, authHandler.ChangePassword)
	authRoutes.Post("/forgot-password", limit, authHandler.ForgotPassword)
	authRoutes.Patch("/reset-password", limit, authHandler.ResetPassword)

	userRoutes := app.Group("/users", protect, RestrictTo(model.RoleAdmin))
	userRoutes.Get("/", userHandler.ListUsers)
	userRoutes.Get("/:id", userHandler.GetUserByID)
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
	}

	slog.ErrorContext(c.UserContext(), "unhandled error", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": service.MsgServerError, "error": err.Error()})
}
