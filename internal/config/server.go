package config

import (
	"HelmetVision/internal/api/detection"
	detectionHandler "HelmetVision/internal/api/detection/handler"
	detectionService "HelmetVision/internal/api/detection/service"
	"HelmetVision/internal/middleware"
	"HelmetVision/pkg/detector"
	"HelmetVision/pkg/redis"
	"HelmetVision/pkg/s3"
	"HelmetVision/pkg/utils"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine      *fiber.App
	log         *logrus.Logger
	middleware  middleware.Middleware
	validator   *validator.Validate
	utils       utils.IUtils
	handlers    []handler
	backend     detector.Backend
	modelLoaded bool
	redisServer redis.IRedis
	s3Client    s3.ItfS3
	service     detectionService.IDetectionService
	timeout     time.Duration
	sideTimeout time.Duration
	corsOrigins string
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{
		timeout:     10 * time.Second,
		corsOrigins: "*",
	}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.backend == nil {
		return nil, fmt.Errorf("%w: a detection backend is required", detector.ErrConfiguration)
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}
	if server.middleware == nil {
		server.middleware = middleware.New(server.log)
	}
	if server.utils == nil {
		server.utils = utils.New()
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithMiddleware(opts ...middleware.Option) ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log, opts...)
		return nil
	}
}

// WithDetector sets the backend chosen at startup. modelLoaded tells the
// status routes whether it is the trained model.
func WithDetector(backend detector.Backend, modelLoaded bool) ServerOption {
	return func(s *Server) error {
		if backend == nil {
			return fmt.Errorf("%w: nil detection backend", detector.ErrConfiguration)
		}
		s.backend = backend
		s.modelLoaded = modelLoaded
		return nil
	}
}

// WithRedisServer enables detection statistics. A nil store disables them.
func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

// WithS3Client enables archiving of uploaded images. A nil client disables it.
func WithS3Client(client s3.ItfS3) ServerOption {
	return func(s *Server) error {
		s.s3Client = client
		return nil
	}
}

func WithUtils(maxUploadSize int64) ServerOption {
	return func(s *Server) error {
		s.utils = utils.NewWithLimit(maxUploadSize)
		return nil
	}
}

func WithDetectionTimeout(d time.Duration) ServerOption {
	return func(s *Server) error {
		if d > 0 {
			s.timeout = d
		}
		return nil
	}
}

// WithSideEffectTimeout bounds each detached statistics or archive write.
func WithSideEffectTimeout(d time.Duration) ServerOption {
	return func(s *Server) error {
		if d > 0 {
			s.sideTimeout = d
		}
		return nil
	}
}

func WithCORS(origins string) ServerOption {
	return func(s *Server) error {
		if origins != "" {
			s.corsOrigins = origins
		}
		return nil
	}
}

func (s *Server) RegisterHandler() {
	opts := make([]detectionService.Option, 0, 3)
	if s.sideTimeout > 0 {
		opts = append(opts, detectionService.WithSideEffectTimeout(s.sideTimeout))
	}
	if s.redisServer != nil {
		opts = append(opts, detectionService.WithStats(s.redisServer))
	}
	if s.s3Client != nil {
		opts = append(opts, detectionService.WithArchive(s.s3Client))
	}

	s.service = detectionService.NewDetectionService(s.log, s.backend, s.modelLoaded, opts...)
	detectionHandlers := detectionHandler.New(s.log, s.validator, s.middleware, s.service, s.utils, s.timeout)

	s.engine.Use(cors.New(cors.Config{
		AllowOrigins: s.corsOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
	}))
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, detectionHandlers)

	router := s.engine.Group("/api")
	for _, h := range s.handlers {
		h.Start(router)
	}
}

// App exposes the configured engine, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.engine
}

func (s *Server) Run(port string) error {
	if port == "" {
		port = "8000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown stops accepting requests and waits for detached statistics and
// archive writes to finish.
func (s *Server) Shutdown(timeout time.Duration) error {
	err := s.engine.ShutdownWithTimeout(timeout)
	if s.service != nil {
		s.service.Wait()
	}
	if s.redisServer != nil {
		if cerr := s.redisServer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(detection.MessageResponse{
			Message: detection.WelcomeMessage,
		})
	})
}
