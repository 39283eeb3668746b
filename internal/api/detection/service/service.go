package detectionService

import (
	"HelmetVision/internal/entity"
	"HelmetVision/pkg/detector"
	"HelmetVision/pkg/redis"
	"HelmetVision/pkg/s3"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type IDetectionService interface {
	DetectBase64(ctx context.Context, payload string) (*entity.DetectionResult, error)
	DetectUpload(ctx context.Context, data []byte, filename string, contentType string) (*entity.DetectionResult, error)
	DetectFrame(ctx context.Context, frame []byte) (*entity.DetectionResult, error)
	Status() entity.ServiceStatus
	Health() entity.HealthStatus
	Stats(ctx context.Context) (*entity.DetectionStats, error)
	Wait()
}

type detectionService struct {
	log          *logrus.Logger
	backend      detector.Backend
	modelLoaded  bool
	stats        redis.IRedis
	archive      s3.ItfS3
	sideTimeout  time.Duration
	pendingSides sync.WaitGroup
}

type Option func(*detectionService)

// WithStats records every successful detection in the statistics store.
func WithStats(store redis.IRedis) Option {
	return func(s *detectionService) {
		s.stats = store
	}
}

// WithArchive copies uploaded images to the archive bucket.
func WithArchive(archive s3.ItfS3) Option {
	return func(s *detectionService) {
		s.archive = archive
	}
}

func WithSideEffectTimeout(d time.Duration) Option {
	return func(s *detectionService) {
		if d > 0 {
			s.sideTimeout = d
		}
	}
}

// NewDetectionService wires the single active backend chosen at startup.
// modelLoaded reports whether that backend is the trained model rather than
// the mock fallback.
func NewDetectionService(
	log *logrus.Logger,
	backend detector.Backend,
	modelLoaded bool,
	opts ...Option,
) IDetectionService {
	s := &detectionService{
		log:         log,
		backend:     backend,
		modelLoaded: modelLoaded,
		sideTimeout: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}
