package config

import (
	"HelmetVision/pkg/utils"
	"os"
	"strconv"
	"time"
)

type AppConfig struct {
	Port              string
	DetectionTimeout  time.Duration
	SideEffectTimeout time.Duration
	MaxUploadSize     int64
	RateLimitRPS      float64
	RateLimitBurst    int
	CORSAllowOrigins  string
	DetectorConfig    string
}

// LoadAppConfig reads server settings from the environment. Malformed values
// fall back to their defaults.
func LoadAppConfig() AppConfig {
	cfg := AppConfig{
		Port:              getEnv("APP_PORT", "8000"),
		DetectionTimeout:  getDuration("DETECTION_TIMEOUT", 10*time.Second),
		SideEffectTimeout: getDuration("SIDE_EFFECT_TIMEOUT", 5*time.Second),
		MaxUploadSize:     getInt64("MAX_UPLOAD_SIZE", utils.DefaultMaxFileSize),
		RateLimitRPS:      getFloat("RATE_LIMIT_RPS", 50),
		RateLimitBurst:    int(getInt64("RATE_LIMIT_BURST", 100)),
		CORSAllowOrigins:  getEnv("CORS_ALLOW_ORIGINS", "*"),
		DetectorConfig:    getEnv("DETECTOR_CONFIG", DefaultDetectorConfigPath),
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getInt64(key string, fallback int64) int64 {
	n, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}
