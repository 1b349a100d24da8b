package logger

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

// Middleware 请求日志中间件
func Middleware(l *zap.Logger) fiber.Handler {
	if l == nil {
		l = Named("http")
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		fields := []zap.Field{
			// fasthttp reuses the request buffers after the handler returns
			zap.String("method", utils.CopyString(c.Method())),
			zap.String("path", utils.CopyString(c.Path())),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			fields = append(fields, zap.String("request_id", utils.CopyString(rid)))
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
			l.Warn("request failed", fields...)
			return err
		}
		l.Debug("request", fields...)
		return nil
	}
}
