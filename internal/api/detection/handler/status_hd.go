package detectionHandler

import (
	"HelmetVision/internal/api/detection"
	contextPkg "HelmetVision/pkg/context"
	"HelmetVision/pkg/handlerUtil"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

func (h *DetectionHandler) Welcome(ctx *fiber.Ctx) error {
	return ctx.JSON(detection.MessageResponse{Message: detection.WelcomeMessage})
}

func (h *DetectionHandler) Status(ctx *fiber.Ctx) error {
	return ctx.JSON(h.detectionService.Status())
}

func (h *DetectionHandler) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(h.detectionService.Health())
}

func (h *DetectionHandler) Stats(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.timeout)
	defer cancel()

	stats, err := h.detectionService.Stats(c)
	if err != nil {
		return handlerUtil.New(h.log).Handle(ctx, requestID, err, ctx.Path(), "get_stats")
	}

	return ctx.JSON(stats)
}
