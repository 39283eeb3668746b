package detection

import (
	"HelmetVision/internal/entity"
	"HelmetVision/pkg/response"
	"net/http"
)

var (
	ErrInvalidRequestBody = response.NewError(http.StatusBadRequest, "invalid request body")
)

// UploadError attaches the uploaded image's metadata to a failure that
// happened after the image was decoded.
type UploadError struct {
	Err       error
	ImageInfo *entity.ImageInfo
}

func (e *UploadError) Error() string {
	return e.Err.Error()
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
