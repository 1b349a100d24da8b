package rest

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/mrgentlewombat/spring-practice-2025/pkg/logger"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/types"
	"github.com/mrgentlewombat/spring-practice-2025/pkg/utils"
)

// newApp builds a fiber app that encodes with sonic and turns every error
// into an ErrorResponse body.
func newApp(name string, cfg fiber.Config, log *zap.Logger) *fiber.App {
	cfg.AppName = name
	cfg.DisableStartupMessage = true
	cfg.JSONEncoder = utils.Marshal
	cfg.JSONDecoder = utils.Unmarshal
	cfg.ErrorHandler = errorHandler(log)

	app := fiber.New(cfg)
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(requestid.New())
	app.Use(logger.Middleware(log))
	return app
}

// errorHandler 统一错误响应, 非 fiber.Error 一律 500 并带上错误信息
func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := err.Error()

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}
		return c.Status(code).JSON(types.NewErrorResponse(message))
	}
}

func corsHandler() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
		MaxAge:       86400,
	})
}

func notFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(types.NewErrorResponse("Not found: " + c.Path()))
}

func methodNotAllowed(allowed string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderAllow, allowed)
		return c.Status(fiber.StatusMethodNotAllowed).JSON(types.NewErrorResponse("Only " + allowed + " method is supported"))
	}
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(types.NewErrorResponse(message))
}
