package config

import (
	"HelmetVision/pkg/handlerUtil"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

// NewFiber builds the app. The body limit leaves headroom over the upload
// limit for multipart framing and base64 inflation.
func NewFiber(logger *logrus.Logger, maxUploadSize int64) *fiber.App {
	bodyLimit := int(maxUploadSize)*2 + 1024*1024

	app := fiber.New(
		fiber.Config{
			AppName:           "HelmetVision Detection API",
			BodyLimit:         bodyLimit,
			DisableKeepalive:  false,
			CaseSensitive:     true,
			EnablePrintRoutes: false,
			JSONEncoder:       jsoniter.Marshal,
			JSONDecoder:       jsoniter.Unmarshal,
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				code := fiber.StatusInternalServerError
				if e, ok := err.(*fiber.Error); ok {
					code = e.Code
				}
				if code >= fiber.StatusInternalServerError {
					logger.WithField("path", c.Path()).Errorf("Unhandled error: %v", err)
					return c.Status(code).JSON(handlerUtil.ErrorResponse{Error: "An unexpected error occurred"})
				}
				return c.Status(code).JSON(handlerUtil.ErrorResponse{Error: err.Error()})
			},
		})

	return app
}
