package detectionService

import (
	"HelmetVision/internal/api/detection"
	"HelmetVision/internal/entity"
	"HelmetVision/pkg/decoder"
	"HelmetVision/pkg/detector"
	"HelmetVision/pkg/log"
	"bytes"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

func (s *detectionService) DetectBase64(ctx context.Context, payload string) (*entity.DetectionResult, error) {
	img, err := decoder.DecodeBase64(payload)
	if err != nil {
		return nil, err
	}

	detections, err := s.detect(ctx, img)
	if err != nil {
		return nil, err
	}

	return BuildResult(detections, nil), nil
}

func (s *detectionService) DetectUpload(ctx context.Context, data []byte, filename string, contentType string) (*entity.DetectionResult, error) {
	img, err := decoder.Decode(data)
	if err != nil {
		return nil, err
	}

	info := &entity.ImageInfo{
		Width:    img.Width,
		Height:   img.Height,
		Filename: filename,
	}

	detections, err := s.detect(ctx, img)
	if err != nil {
		return nil, &detection.UploadError{Err: err, ImageInfo: info}
	}

	s.archiveUpload(ctx, filename, contentType, data)

	return BuildResult(detections, info), nil
}

func (s *detectionService) DetectFrame(ctx context.Context, frame []byte) (*entity.DetectionResult, error) {
	img, err := decoder.Decode(frame)
	if err != nil {
		return nil, err
	}

	detections, err := s.detect(ctx, img)
	if err != nil {
		return nil, err
	}

	return BuildResult(detections, nil), nil
}

func (s *detectionService) detect(ctx context.Context, img *decoder.Image) ([]entity.Detection, error) {
	detections, err := s.backend.Detect(ctx, img)
	if err != nil {
		if errors.Is(err, detector.ErrConfiguration) || errors.Is(err, detector.ErrInference) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", detector.ErrInference, err)
	}

	log.WithRequestID(s.log, ctx).WithFields(logrus.Fields{
		"backend":    s.backend.Name(),
		"width":      img.Width,
		"height":     img.Height,
		"detections": len(detections),
	}).Debug("Detection finished")

	s.recordStats(ctx, detections)

	return detections, nil
}

// recordStats and archiveUpload run detached from the request: a slow or
// failing store only costs a log line.
func (s *detectionService) recordStats(ctx context.Context, detections []entity.Detection) {
	if s.stats == nil {
		return
	}

	labels := make([]string, 0, len(detections))
	for _, d := range detections {
		labels = append(labels, d.Label)
	}
	entry := log.WithRequestID(s.log, ctx)
	backend := s.backend.Name()

	s.pendingSides.Add(1)
	go func() {
		defer s.pendingSides.Done()

		c, cancel := context.WithTimeout(context.Background(), s.sideTimeout)
		defer cancel()

		if err := s.stats.RecordDetections(c, backend, labels); err != nil {
			entry.WithError(err).Warn("Failed to record detection statistics")
		}
	}()
}

func (s *detectionService) archiveUpload(ctx context.Context, filename string, contentType string, data []byte) {
	if s.archive == nil {
		return
	}

	entry := log.WithRequestID(s.log, ctx)
	body := bytes.Clone(data)

	s.pendingSides.Add(1)
	go func() {
		defer s.pendingSides.Done()

		c, cancel := context.WithTimeout(context.Background(), s.sideTimeout)
		defer cancel()

		location, err := s.archive.ArchiveImage(c, filename, contentType, body)
		if err != nil {
			entry.WithError(err).Warn("Failed to archive uploaded image")
			return
		}
		entry.WithField("location", location).Debug("Uploaded image archived")
	}()
}

func (s *detectionService) Status() entity.ServiceStatus {
	return entity.ServiceStatus{
		Status:      "running",
		Model:       s.backend.Name(),
		ModelLoaded: s.isModelLoaded(),
		Classes:     s.backend.Vocabulary().Labels(),
	}
}

func (s *detectionService) Health() entity.HealthStatus {
	modelStatus := "not_loaded"
	if s.isModelLoaded() {
		modelStatus = "loaded"
	}

	return entity.HealthStatus{
		Status:      "healthy",
		ModelStatus: modelStatus,
	}
}

// isModelLoaded is false for the mock fallback, and for the model while its
// worker has refused a reload.
func (s *detectionService) isModelLoaded() bool {
	return s.modelLoaded && s.backend.Available()
}

func (s *detectionService) Stats(ctx context.Context) (*entity.DetectionStats, error) {
	if s.stats == nil {
		return &entity.DetectionStats{Enabled: false}, nil
	}

	stats, err := s.stats.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read detection statistics: %w", err)
	}
	stats.Enabled = true

	return stats, nil
}

// Wait blocks until detached statistics and archive writes have finished.
func (s *detectionService) Wait() {
	s.pendingSides.Wait()
}
