package detectionService

import "HelmetVision/internal/entity"

// BuildResult wraps backend output as-is. Order is preserved and nothing is
// filtered; a nil slice becomes an empty list so the JSON field is never null.
func BuildResult(detections []entity.Detection, info *entity.ImageInfo) *entity.DetectionResult {
	if detections == nil {
		detections = []entity.Detection{}
	}

	return &entity.DetectionResult{
		Detections: detections,
		ImageInfo:  info,
	}
}
