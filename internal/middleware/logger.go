package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestLogger is a Fiber middleware that logs one structured line per
// request. Server errors log at error level and client errors at warn.
func RequestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		chainErr := c.Next()

		// The error handler has not run yet, so derive the final status here.
		status := c.Response().StatusCode()
		if chainErr != nil {
			status = fiber.StatusInternalServerError
			if fiberErr, ok := chainErr.(*fiber.Error); ok {
				status = fiberErr.Code
			}
		}

		level := zapcore.InfoLevel
		switch {
		case status >= fiber.StatusInternalServerError:
			level = zapcore.ErrorLevel
		case status >= fiber.StatusBadRequest:
			level = zapcore.WarnLevel
		}

		// Fiber strings point into buffers fasthttp reuses after the request,
		// and a core may keep fields past this call.
		fields := []zap.Field{
			zap.String("method", utils.CopyString(c.Method())),
			zap.String("path", utils.CopyString(c.Path())),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", utils.CopyString(c.IP())),
		}
		if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok && id != "" {
			fields = append(fields, zap.String("request_id", utils.CopyString(id)))
		}
		if chainErr != nil {
			fields = append(fields, zap.Error(chainErr))
		}
		if ce := logger.Check(level, "HTTP request"); ce != nil {
			ce.Write(fields...)
		}
		return chainErr
	}
}
