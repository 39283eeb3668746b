package main

import (
	"HelmetVision/internal/config"
	"HelmetVision/internal/middleware"
	"HelmetVision/pkg/detector"
	"HelmetVision/pkg/log"
	"HelmetVision/pkg/redis"
	"HelmetVision/pkg/s3"
	websocketPkg "HelmetVision/pkg/websocket"
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn(log.Fields{"error": err.Error()}, "No .env file loaded, using process environment")
	}

	logger := log.NewLogger()
	appConfig := config.LoadAppConfig()

	detectorConfig, err := config.LoadDetectorConfig(appConfig.DetectorConfig)
	if err != nil {
		logger.Fatalf("Error loading detector configuration: %v", err)
	}

	mockConfig, err := detectorConfig.ActiveMock()
	if err != nil {
		logger.Fatalf("Invalid mock detector configuration: %v", err)
	}
	mock, err := detector.NewMockDetector(mockConfig, detectorConfig.MockOptions()...)
	if err != nil {
		logger.Fatalf("Error creating mock detector: %v", err)
	}

	model, modelErr := initModel(detectorConfig, logger)
	var primary detector.Backend
	closeModel := func() {}
	if modelErr == nil {
		primary = model
		closeModel = model.Close
	}
	backend := detector.Select(primary, modelErr, mock, logger)

	redisServer, err := redis.New()
	if err != nil {
		logger.WithField("reason", err.Error()).Warn("Detection statistics disabled")
		redisServer = nil
	}

	s3Client, err := s3.New()
	if err != nil {
		logger.WithField("reason", err.Error()).Warn("Upload archive disabled")
		s3Client = nil
	}

	fiberApp := config.NewFiber(logger, appConfig.MaxUploadSize)

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(config.NewValidator()),
		config.WithMiddleware(middleware.WithRateLimit(appConfig.RateLimitRPS, appConfig.RateLimitBurst)),
		config.WithDetector(backend, backend == primary && primary != nil),
		config.WithRedisServer(redisServer),
		config.WithS3Client(s3Client),
		config.WithUtils(appConfig.MaxUploadSize),
		config.WithDetectionTimeout(appConfig.DetectionTimeout),
		config.WithSideEffectTimeout(appConfig.SideEffectTimeout),
		config.WithCORS(appConfig.CORSAllowOrigins),
	)
	if err != nil {
		closeModel()
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Run(appConfig.Port)
	}()

	logger.WithFields(logrus.Fields{
		"port":    appConfig.Port,
		"backend": backend.Name(),
	}).Info("Server started successfully")

	exitCode := 0
	select {
	case <-sigChan:
		logger.Info("Shutting down server...")
	case err := <-serverErr:
		if err != nil {
			logger.Errorf("Error starting server: %v", err)
			exitCode = 1
		}
	}

	if err := server.Shutdown(10 * time.Second); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
	closeModel()

	os.Exit(exitCode)
}

func initModel(cfg *config.DetectorConfig, logger *logrus.Logger) (*detector.ModelDetector, error) {
	if !cfg.Model.Enabled {
		return nil, errors.New("model detector disabled by configuration")
	}

	client := websocketPkg.NewInferenceClient(cfg.Model.WorkerURL, logger)
	return detector.NewModelDetector(context.Background(), cfg.Model.ModelConfig, client, logger)
}
