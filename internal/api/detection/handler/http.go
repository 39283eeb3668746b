package detectionHandler

import (
	detectionService "HelmetVision/internal/api/detection/service"
	"HelmetVision/internal/middleware"
	"HelmetVision/pkg/utils"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type DetectionHandler struct {
	log              *logrus.Logger
	validator        *validator.Validate
	middleware       middleware.Middleware
	detectionService detectionService.IDetectionService
	utils            utils.IUtils
	timeout          time.Duration
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ds detectionService.IDetectionService,
	utils utils.IUtils,
	timeout time.Duration,
) *DetectionHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &DetectionHandler{
		detectionService: ds,
		log:              log,
		validator:        validator,
		middleware:       middleware,
		utils:            utils,
		timeout:          timeout,
	}
}

func (h *DetectionHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	srv.Get("/", h.Welcome)
	srv.Get("/status", h.Status)
	srv.Get("/health", h.Health)
	srv.Get("/stats", h.Stats)

	srv.Post("/detect-base64", h.middleware.NewRateLimiter, h.DetectBase64)
	srv.Post("/detect-upload", h.middleware.NewRateLimiter, h.DetectUpload)

	stream := srv.Group("/detect")
	stream.Use("/ws", h.middleware.NewRateLimiter, wsMiddleware)
	stream.Get("/ws", websocket.New(h.handleStream))
}
