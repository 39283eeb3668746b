package detectionHandler

import (
	"HelmetVision/internal/api/detection"
	contextPkg "HelmetVision/pkg/context"
	"HelmetVision/pkg/handlerUtil"
	"HelmetVision/pkg/log"
	"HelmetVision/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

func (h *DetectionHandler) DetectBase64(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.timeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req detection.DetectBase64Request
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, detection.ErrInvalidRequestBody, ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	h.log.WithFields(log.Fields{
		"request_id":   requestID,
		"path":         ctx.Path(),
		"payload_size": len(req.Image),
	}).Debug("Processing base64 detection request")

	result, err := h.detectionService.DetectBase64(c, req.Image)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "detect_base64")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"detections": len(result.Detections),
	}).Info("Detection successful")

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
}

func (h *DetectionHandler) DetectUpload(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.timeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	file, err := ctx.FormFile("file")
	if err != nil {
		file, err = ctx.FormFile("image")
	}
	if err != nil {
		return errHandler.Handle(ctx, requestID, utils.ErrNoFileUploaded, ctx.Path(), "read_form_file")
	}

	h.log.WithFields(log.Fields{
		"request_id":   requestID,
		"path":         ctx.Path(),
		"file_name":    file.Filename,
		"file_size":    file.Size,
		"content_type": file.Header.Get("Content-Type"),
	}).Debug("Processing file upload")

	if err := h.utils.ValidateImageFile(file); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "validate_image_file")
	}

	data, err := h.utils.ReadUploadedFile(file)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_uploaded_file")
	}

	result, err := h.detectionService.DetectUpload(c, data, file.Filename, file.Header.Get("Content-Type"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "detect_upload")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"file_name":  file.Filename,
		"detections": len(result.Detections),
	}).Info("Detection successful")

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
}
