package detector

import (
	"HelmetVision/internal/entity"
	"HelmetVision/pkg/decoder"
	"context"
	"errors"
	"fmt"
)

var (
	ErrInference     = errors.New("inference failed")
	ErrConfiguration = errors.New("invalid detector configuration")
)

// Backend turns a decoded image into detections. Implementations must be
// safe for concurrent use.
type Backend interface {
	Name() string
	Vocabulary() Vocabulary
	Available() bool
	Detect(ctx context.Context, img *decoder.Image) ([]entity.Detection, error)
}

// Vocabulary maps class ids to labels.
type Vocabulary struct {
	labels []string
}

func NewVocabulary(labels ...string) Vocabulary {
	cp := make([]string, len(labels))
	copy(cp, labels)
	return Vocabulary{labels: cp}
}

func (v Vocabulary) Len() int {
	return len(v.labels)
}

// Label returns "Class_<id>" for ids outside the vocabulary.
func (v Vocabulary) Label(id int) string {
	if id < 0 || id >= len(v.labels) {
		return fmt.Sprintf("Class_%d", id)
	}
	return v.labels[id]
}

func (v Vocabulary) Contains(label string) bool {
	for _, l := range v.labels {
		if l == label {
			return true
		}
	}
	return false
}

func (v Vocabulary) Labels() []string {
	cp := make([]string, len(v.labels))
	copy(cp, v.labels)
	return cp
}

type IntRange struct {
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

func (r IntRange) validate(name string) error {
	if r.Min > r.Max {
		return fmt.Errorf("%w: %s range is inverted (%d > %d)", ErrConfiguration, name, r.Min, r.Max)
	}
	if r.Min < 0 {
		return fmt.Errorf("%w: %s range must be non-negative", ErrConfiguration, name)
	}
	return nil
}

func (r IntRange) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}
