package detector

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockDetectorSeededIsDeterministic(t *testing.T) {
	cfg, ok := MockProfile("demo")
	require.True(t, ok)

	a, err := NewMockDetector(cfg, WithSeed(42))
	require.NoError(t, err)
	b, err := NewMockDetector(cfg, WithSeed(42))
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		got, err := a.Detect(context.Background(), nil)
		require.NoError(t, err)
		want, err := b.Detect(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestMockDetectorRespectsRanges(t *testing.T) {
	configs := map[string]MockConfig{}
	for name := range MockProfiles {
		cfg, _ := MockProfile(name)
		configs[name] = cfg
	}
	configs["single"] = MockConfig{
		MinCount: 1, MaxCount: 1,
		ConfidenceMin: 0.6, ConfidenceMax: 0.95,
		X: IntRange{0, 0}, Y: IntRange{5, 5},
		Width: IntRange{1, 2}, Height: IntRange{10, 10},
		Vocabulary: []string{"With Helmet", "Without Helmet"},
	}
	configs["odd confidence"] = MockConfig{
		MinCount: 2, MaxCount: 6,
		ConfidenceMin: 0.605, ConfidenceMax: 0.607,
		X: IntRange{10, 20}, Y: IntRange{10, 20},
		Width: IntRange{5, 6}, Height: IntRange{5, 6},
		Vocabulary: []string{"a"},
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			d, err := NewMockDetector(cfg, WithRand(rand.New(rand.NewSource(7))))
			require.NoError(t, err)

			for i := 0; i < 200; i++ {
				dets, err := d.Detect(context.Background(), nil)
				require.NoError(t, err)

				assert.GreaterOrEqual(t, len(dets), cfg.MinCount)
				assert.LessOrEqual(t, len(dets), cfg.MaxCount)

				for _, det := range dets {
					assert.True(t, d.Vocabulary().Contains(det.Label), det.Label)
					assert.GreaterOrEqual(t, det.Confidence, cfg.ConfidenceMin)
					assert.LessOrEqual(t, det.Confidence, cfg.ConfidenceMax)
					assert.True(t, cfg.X.Contains(det.Box.X))
					assert.True(t, cfg.Y.Contains(det.Box.Y))
					assert.True(t, cfg.Width.Contains(det.Box.Width))
					assert.True(t, cfg.Height.Contains(det.Box.Height))
					assert.Nil(t, det.OBB)
				}
			}
		})
	}
}

func TestMockConfigValidate(t *testing.T) {
	base, _ := MockProfile("default")

	tests := []struct {
		name   string
		mutate func(*MockConfig)
	}{
		{"empty vocabulary", func(c *MockConfig) { c.Vocabulary = nil }},
		{"inverted count", func(c *MockConfig) { c.MinCount, c.MaxCount = 4, 1 }},
		{"negative count", func(c *MockConfig) { c.MinCount = -1 }},
		{"inverted confidence", func(c *MockConfig) { c.ConfidenceMin, c.ConfidenceMax = 0.9, 0.1 }},
		{"confidence above one", func(c *MockConfig) { c.ConfidenceMax = 1.5 }},
		{"inverted x", func(c *MockConfig) { c.X = IntRange{Min: 10, Max: 5} }},
		{"zero width", func(c *MockConfig) { c.Width = IntRange{Min: 0, Max: 5} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.Vocabulary = append([]string(nil), base.Vocabulary...)
			tt.mutate(&cfg)

			_, err := NewMockDetector(cfg)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}

	assert.NoError(t, base.Validate())
}

func TestMockDetectorConcurrentUse(t *testing.T) {
	cfg, _ := MockProfile("default")
	d, err := NewMockDetector(cfg, WithSeed(1))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := d.Detect(context.Background(), nil)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}

func TestVocabularyLabel(t *testing.T) {
	v := NewVocabulary("With Helmet", "Without Helmet")

	assert.Equal(t, "With Helmet", v.Label(0))
	assert.Equal(t, "Without Helmet", v.Label(1))
	assert.Equal(t, "Class_2", v.Label(2))
	assert.Equal(t, "Class_-1", v.Label(-1))

	labels := v.Labels()
	labels[0] = "changed"
	assert.Equal(t, "With Helmet", v.Label(0))
}

func TestMockProfileReturnsCopy(t *testing.T) {
	cfg, ok := MockProfile("default")
	require.True(t, ok)
	cfg.Vocabulary[0] = "changed"

	again, _ := MockProfile("default")
	assert.Equal(t, "person", again.Vocabulary[0])

	_, ok = MockProfile("missing")
	assert.False(t, ok)
}
