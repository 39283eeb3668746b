package detector

import (
	"HelmetVision/internal/entity"
	"HelmetVision/pkg/decoder"
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

const MockDetectorName = "simple_mock_detector"

type MockConfig struct {
	MinCount      int      `mapstructure:"min_count"`
	MaxCount      int      `mapstructure:"max_count"`
	ConfidenceMin float64  `mapstructure:"confidence_min"`
	ConfidenceMax float64  `mapstructure:"confidence_max"`
	X             IntRange `mapstructure:"x"`
	Y             IntRange `mapstructure:"y"`
	Width         IntRange `mapstructure:"width"`
	Height        IntRange `mapstructure:"height"`
	Vocabulary    []string `mapstructure:"vocabulary"`
}

func (c MockConfig) Validate() error {
	if len(c.Vocabulary) == 0 {
		return fmt.Errorf("%w: mock vocabulary is empty", ErrConfiguration)
	}
	if c.MinCount < 0 || c.MinCount > c.MaxCount {
		return fmt.Errorf("%w: detection count range [%d, %d] is invalid", ErrConfiguration, c.MinCount, c.MaxCount)
	}
	if c.ConfidenceMin < 0 || c.ConfidenceMax > 1 || c.ConfidenceMin > c.ConfidenceMax {
		return fmt.Errorf("%w: confidence range [%.2f, %.2f] is invalid", ErrConfiguration, c.ConfidenceMin, c.ConfidenceMax)
	}

	ranges := []struct {
		name string
		r    IntRange
	}{
		{"x", c.X}, {"y", c.Y}, {"width", c.Width}, {"height", c.Height},
	}
	for _, rr := range ranges {
		if err := rr.r.validate(rr.name); err != nil {
			return err
		}
	}

	if c.Width.Min <= 0 || c.Height.Min <= 0 {
		return fmt.Errorf("%w: box width and height must be positive", ErrConfiguration)
	}

	return nil
}

// Mock profiles from the two deployments the service grew out of.
var MockProfiles = map[string]MockConfig{
	"default": {
		MinCount:      0,
		MaxCount:      3,
		ConfidenceMin: 0.5,
		ConfidenceMax: 0.95,
		X:             IntRange{Min: 50, Max: 200},
		Y:             IntRange{Min: 50, Max: 150},
		Width:         IntRange{Min: 80, Max: 150},
		Height:        IntRange{Min: 80, Max: 150},
		Vocabulary:    []string{"person", "car", "dog", "cat", "bicycle", "bottle", "phone"},
	},
	"demo": {
		MinCount:      1,
		MaxCount:      4,
		ConfidenceMin: 0.6,
		ConfidenceMax: 0.95,
		X:             IntRange{Min: 50, Max: 300},
		Y:             IntRange{Min: 50, Max: 200},
		Width:         IntRange{Min: 80, Max: 200},
		Height:        IntRange{Min: 80, Max: 200},
		Vocabulary:    []string{"person", "car", "dog", "cat", "bicycle", "bottle", "phone", "laptop", "book", "chair"},
	},
}

type MockOption func(*MockDetector)

func WithSeed(seed int64) MockOption {
	return func(d *MockDetector) {
		d.rng = rand.New(rand.NewSource(seed))
	}
}

func WithRand(rng *rand.Rand) MockOption {
	return func(d *MockDetector) {
		d.rng = rng
	}
}

// MockDetector fabricates plausible detections without looking at the image.
type MockDetector struct {
	cfg   MockConfig
	vocab Vocabulary
	mu    sync.Mutex
	rng   *rand.Rand
}

func NewMockDetector(cfg MockConfig, opts ...MockOption) (*MockDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &MockDetector{
		cfg:   cfg,
		vocab: NewVocabulary(cfg.Vocabulary...),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.rng == nil {
		d.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return d, nil
}

func (d *MockDetector) Name() string {
	return MockDetectorName
}

func (d *MockDetector) Vocabulary() Vocabulary {
	return d.vocab
}

func (d *MockDetector) Available() bool {
	return true
}

func (d *MockDetector) Detect(_ context.Context, _ *decoder.Image) ([]entity.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	count := d.intn(IntRange{Min: d.cfg.MinCount, Max: d.cfg.MaxCount})
	detections := make([]entity.Detection, 0, count)

	for i := 0; i < count; i++ {
		label := d.vocab.Label(d.rng.Intn(d.vocab.Len()))
		confidence := d.confidence()

		detections = append(detections, entity.Detection{
			Label:      label,
			Confidence: confidence,
			Box: entity.Box{
				X:      d.intn(d.cfg.X),
				Y:      d.intn(d.cfg.Y),
				Width:  d.intn(d.cfg.Width),
				Height: d.intn(d.cfg.Height),
			},
		})
	}

	return detections, nil
}

// intn draws uniformly from the inclusive range.
func (d *MockDetector) intn(r IntRange) int {
	return r.Min + d.rng.Intn(r.Max-r.Min+1)
}

func (d *MockDetector) confidence() float64 {
	lo, hi := d.cfg.ConfidenceMin, d.cfg.ConfidenceMax
	v := math.Round((lo+d.rng.Float64()*(hi-lo))*100) / 100
	return math.Min(math.Max(v, lo), hi)
}

// MockProfile returns a copy of a built-in profile.
func MockProfile(name string) (MockConfig, bool) {
	cfg, ok := MockProfiles[name]
	if !ok {
		return MockConfig{}, false
	}
	cfg.Vocabulary = append([]string(nil), cfg.Vocabulary...)
	return cfg, true
}
