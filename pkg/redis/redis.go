package redis

import (
	"HelmetVision/internal/entity"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	keyRequests   = "detection:requests"
	keyDetections = "detection:detections"
	keyLabels     = "detection:labels"
	keyBackends   = "detection:backends"
)

var ErrNotConfigured = errors.New("redis address not configured")

type IRedis interface {
	RecordDetections(ctx context.Context, backend string, labels []string) error
	GetStats(ctx context.Context) (*entity.DetectionStats, error)
	Close() error
}

type redisClient struct {
	client *redis.Client
}

func New() (IRedis, error) {
	redisAddr := os.Getenv("REDIS_ADDRESS")
	if redisAddr == "" {
		return nil, ErrNotConfigured
	}
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logrus.Info("Successfully connected to Redis")

	return NewWithClient(client), nil
}

func NewWithClient(client *redis.Client) IRedis {
	return &redisClient{client: client}
}

func (r *redisClient) RecordDetections(ctx context.Context, backend string, labels []string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, keyRequests)
		pipe.IncrBy(ctx, keyDetections, int64(len(labels)))
		pipe.HIncrBy(ctx, keyBackends, backend, 1)
		for _, label := range labels {
			pipe.HIncrBy(ctx, keyLabels, label, 1)
		}
		return nil
	})
	if err != nil {
		logrus.Error(fmt.Sprintf("Error recording detections for backend %s: %v", backend, err))
		return err
	}
	return nil
}

func (r *redisClient) GetStats(ctx context.Context) (*entity.DetectionStats, error) {
	pipe := r.client.Pipeline()
	requests := pipe.Get(ctx, keyRequests)
	detections := pipe.Get(ctx, keyDetections)
	labels := pipe.HGetAll(ctx, keyLabels)
	backends := pipe.HGetAll(ctx, keyBackends)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		logrus.Error(fmt.Sprintf("Error reading detection stats: %v", err))
		return nil, err
	}

	stats := &entity.DetectionStats{
		Enabled:  true,
		Labels:   toCounts(labels.Val()),
		Backends: toCounts(backends.Val()),
	}
	stats.Requests, _ = requests.Int64()
	stats.Detections, _ = detections.Int64()

	return stats, nil
}

func (r *redisClient) Close() error {
	return r.client.Close()
}

func toCounts(raw map[string]string) map[string]int64 {
	counts := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		counts[k] = n
	}
	return counts
}
