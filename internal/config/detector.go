package config

import (
	"HelmetVision/pkg/detector"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const DefaultDetectorConfigPath = "config/detector.yaml"

type DetectorConfig struct {
	Mock  MockSection  `mapstructure:"mock"`
	Model ModelSection `mapstructure:"model"`
}

type MockSection struct {
	Profile  string                         `mapstructure:"profile"`
	Seed     int64                          `mapstructure:"seed"`
	Profiles map[string]detector.MockConfig `mapstructure:"profiles"`
}

type ModelSection struct {
	Enabled              bool `mapstructure:"enabled"`
	detector.ModelConfig `mapstructure:",squash"`
}

// LoadDetectorConfig reads the optional YAML file at path and applies
// DETECTOR_* environment overrides, e.g. DETECTOR_MOCK_PROFILE=demo or
// DETECTOR_MODEL_WORKER_URL. A missing file is not an error.
func LoadDetectorConfig(path string) (*DetectorConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("DETECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDetectorDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: failed to read %s: %v", detector.ErrConfiguration, path, err)
			}
		}
	}

	var cfg DetectorConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal detector config: %v", detector.ErrConfiguration, err)
	}

	return &cfg, nil
}

// ActiveMock returns the selected mock profile, validated.
func (c *DetectorConfig) ActiveMock() (detector.MockConfig, error) {
	name := c.Mock.Profile
	if name == "" {
		name = "default"
	}

	profile, ok := c.Mock.Profiles[name]
	if !ok {
		return detector.MockConfig{}, fmt.Errorf("%w: unknown mock profile %q", detector.ErrConfiguration, name)
	}

	if err := profile.Validate(); err != nil {
		return detector.MockConfig{}, fmt.Errorf("mock profile %q: %w", name, err)
	}

	return profile, nil
}

// MockOptions seeds the mock when a seed is configured; otherwise it draws
// from a time-seeded source.
func (c *DetectorConfig) MockOptions() []detector.MockOption {
	if c.Mock.Seed == 0 {
		return nil
	}
	return []detector.MockOption{detector.WithSeed(c.Mock.Seed)}
}

func setDetectorDefaults(v *viper.Viper) {
	v.SetDefault("mock.profile", "default")
	v.SetDefault("mock.seed", 0)

	for name, profile := range detector.MockProfiles {
		setMockDefaults(v, "mock.profiles."+name, profile)
	}

	v.SetDefault("model.enabled", true)
	v.SetDefault("model.name", "helmet_obb")
	v.SetDefault("model.path", "runs/obb/train/weights/best.pt")
	v.SetDefault("model.worker_url", "")
	v.SetDefault("model.vocabulary", []string{"With Helmet", "Without Helmet"})
	v.SetDefault("model.input_size", 640)
	v.SetDefault("model.channel_order", detector.ChannelOrderBGR)
	v.SetDefault("model.confidence_threshold", 0.25)
	v.SetDefault("model.load_timeout", 30*time.Second)
	v.SetDefault("model.inference_timeout", 10*time.Second)
}

// Defaults are set per leaf so a file that overrides one field of a built-in
// profile keeps the rest.
func setMockDefaults(v *viper.Viper, prefix string, cfg detector.MockConfig) {
	v.SetDefault(prefix+".min_count", cfg.MinCount)
	v.SetDefault(prefix+".max_count", cfg.MaxCount)
	v.SetDefault(prefix+".confidence_min", cfg.ConfidenceMin)
	v.SetDefault(prefix+".confidence_max", cfg.ConfidenceMax)
	v.SetDefault(prefix+".x.min", cfg.X.Min)
	v.SetDefault(prefix+".x.max", cfg.X.Max)
	v.SetDefault(prefix+".y.min", cfg.Y.Min)
	v.SetDefault(prefix+".y.max", cfg.Y.Max)
	v.SetDefault(prefix+".width.min", cfg.Width.Min)
	v.SetDefault(prefix+".width.max", cfg.Width.Max)
	v.SetDefault(prefix+".height.min", cfg.Height.Min)
	v.SetDefault(prefix+".height.max", cfg.Height.Max)
	v.SetDefault(prefix+".vocabulary", cfg.Vocabulary)
}
