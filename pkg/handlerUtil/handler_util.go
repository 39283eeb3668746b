package handlerUtil

import (
	"HelmetVision/internal/api/detection"
	"HelmetVision/internal/entity"
	"HelmetVision/pkg/decoder"
	"HelmetVision/pkg/detector"
	"HelmetVision/pkg/log"
	"HelmetVision/pkg/response"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Handle renders err as JSON. Decode and inference failures are part of the
// detection contract and are answered with 200; everything else carries an
// HTTP error status.
func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}

	if code := response.StatusOf(err, 0); code != 0 {
		fields["code"] = code
		h.logger.WithFields(fields).Warn("Operation failed with error response")
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}

	var info *entity.ImageInfo
	var uploadErr *detection.UploadError
	if errors.As(err, &uploadErr) {
		info = uploadErr.ImageInfo
	}

	if errors.Is(err, decoder.ErrDecode) {
		h.logger.WithFields(fields).Warn("Image could not be decoded")
		return c.Status(fiber.StatusOK).JSON(detection.DecodeErrorResponse{
			Error:      err.Error(),
			Detections: []entity.Detection{},
		})
	}

	if errors.Is(err, detector.ErrConfiguration) {
		h.logger.WithFields(fields).Error("Detector misconfigured")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if errors.Is(err, detector.ErrInference) {
		h.logger.WithFields(fields).Warn("Inference failed")
		return c.Status(fiber.StatusOK).JSON(detection.InferenceErrorResponse{
			Error:     err.Error(),
			ImageInfo: info,
		})
	}

	traceID := log.ErrorWithTraceID(h.logger, fields, "Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":    "An unexpected error occurred",
		"trace_id": traceID,
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error: "Validation failed: " + err.Error(),
		Code:  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
