package detection

import "HelmetVision/internal/entity"

type DetectBase64Request struct {
	Image string `json:"image" validate:"required"`
}

type DecodeErrorResponse struct {
	Error      string             `json:"error"`
	Detections []entity.Detection `json:"detections"`
}

type InferenceErrorResponse struct {
	Error     string            `json:"error"`
	ImageInfo *entity.ImageInfo `json:"image_info,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

const WelcomeMessage = "Object Detection API is running!"

type StreamError struct {
	Error string `json:"error"`
}
