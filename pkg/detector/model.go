package detector

import (
	"HelmetVision/internal/entity"
	"HelmetVision/pkg/decoder"
	websocketPkg "HelmetVision/pkg/websocket"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nfnt/resize"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const (
	ChannelOrderRGB = "rgb"
	ChannelOrderBGR = "bgr"
)

type ModelConfig struct {
	Name                string        `mapstructure:"name"`
	ModelPath           string        `mapstructure:"path"`
	WorkerURL           string        `mapstructure:"worker_url"`
	Vocabulary          []string      `mapstructure:"vocabulary"`
	InputSize           int           `mapstructure:"input_size"`
	ChannelOrder        string        `mapstructure:"channel_order"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	LoadTimeout         time.Duration `mapstructure:"load_timeout"`
	InferenceTimeout    time.Duration `mapstructure:"inference_timeout"`
}

func (c ModelConfig) Validate() error {
	if strings.TrimSpace(c.ModelPath) == "" {
		return fmt.Errorf("%w: model path is required", ErrConfiguration)
	}
	if len(c.Vocabulary) == 0 {
		return fmt.Errorf("%w: model vocabulary is empty", ErrConfiguration)
	}
	if c.InputSize <= 0 {
		return fmt.Errorf("%w: input size must be positive", ErrConfiguration)
	}
	if c.ChannelOrder != ChannelOrderRGB && c.ChannelOrder != ChannelOrderBGR {
		return fmt.Errorf("%w: unknown channel order %q", ErrConfiguration, c.ChannelOrder)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence threshold must be within [0, 1]", ErrConfiguration)
	}
	return nil
}

// ModelDetector runs a YOLO OBB model hosted by an inference worker. The worker
// holds one model instance and is not reentrant, so calls are serialised.
type ModelDetector struct {
	cfg    ModelConfig
	vocab  Vocabulary
	client websocketPkg.IWebsocket
	log    *logrus.Logger
	slot   chan struct{}
}

// NewModelDetector asks the worker to load the model and only returns a
// detector once the load has been acknowledged.
func NewModelDetector(ctx context.Context, cfg ModelConfig, client websocketPkg.IWebsocket, logger *logrus.Logger) (*ModelDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = "yolov8_obb"
	}

	if cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.LoadTimeout)
		defer cancel()
	}

	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("model %s unavailable: %w", cfg.ModelPath, err)
	}

	resp, err := client.Load(ctx, websocketPkg.LoadRequest{
		ID:        newRequestID(),
		ModelPath: cfg.ModelPath,
		Classes:   cfg.Vocabulary,
		InputSize: cfg.InputSize,
	})
	if err != nil {
		client.CloseConnections()
		return nil, fmt.Errorf("model %s unavailable: %w", cfg.ModelPath, err)
	}
	if !resp.OK {
		client.CloseConnections()
		return nil, fmt.Errorf("model %s failed to load: %s", cfg.ModelPath, resp.Error)
	}

	if len(resp.Classes) > 0 && !sameLabels(resp.Classes, cfg.Vocabulary) {
		logger.WithFields(logrus.Fields{
			"configured": cfg.Vocabulary,
			"reported":   resp.Classes,
		}).Warn("Model reports a different class set; using configured vocabulary")
	}

	logger.WithFields(logrus.Fields{
		"model": cfg.Name,
		"path":  cfg.ModelPath,
		"task":  resp.Task,
	}).Info("Model loaded by inference worker")

	return &ModelDetector{
		cfg:    cfg,
		vocab:  NewVocabulary(cfg.Vocabulary...),
		client: client,
		log:    logger,
		slot:   make(chan struct{}, 1),
	}, nil
}

func (d *ModelDetector) Name() string {
	return d.cfg.Name
}

func (d *ModelDetector) Vocabulary() Vocabulary {
	return d.vocab
}

// Available follows the worker's load state: it turns false when a reload
// after a reconnect is refused, and true again once a reload succeeds.
func (d *ModelDetector) Available() bool {
	return d.client.ModelLoaded()
}

func (d *ModelDetector) Close() {
	d.client.CloseConnections()
}

func (d *ModelDetector) Detect(ctx context.Context, img *decoder.Image) ([]entity.Detection, error) {
	if img.Empty() {
		return nil, fmt.Errorf("%w: empty pixel array", ErrInference)
	}

	if d.cfg.InferenceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.InferenceTimeout)
		defer cancel()
	}

	select {
	case d.slot <- struct{}{}:
		defer func() { <-d.slot }()
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for model: %v", ErrInference, ctx.Err())
	}

	frame, sx, sy := d.prepare(img)

	resp, err := d.client.Infer(ctx, websocketPkg.InferRequest{
		ID:         newRequestID(),
		Width:      frame.Width,
		Height:     frame.Height,
		Channels:   frame.Channels,
		Order:      d.cfg.ChannelOrder,
		Confidence: d.cfg.ConfidenceThreshold,
		Data:       d.pixels(frame),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: timed out: %v", ErrInference, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrInference, resp.Error)
	}

	return d.normalize(resp.Detections, img.Width, img.Height, sx, sy)
}

// prepare downsizes the frame so its longest side fits the model input size.
// It returns the scale factors from the prepared frame back to the source.
func (d *ModelDetector) prepare(img *decoder.Image) (*decoder.Image, float64, float64) {
	longest := img.Width
	if img.Height > longest {
		longest = img.Height
	}
	if longest <= d.cfg.InputSize {
		return img, 1, 1
	}

	ratio := float64(d.cfg.InputSize) / float64(longest)
	w := uint(math.Max(1, math.Round(float64(img.Width)*ratio)))
	h := uint(math.Max(1, math.Round(float64(img.Height)*ratio)))

	resized := decoder.FromImage(resize.Resize(w, h, img.ToImage(), resize.Bilinear))
	if img.Channels == 1 && resized.Channels == 3 {
		resized = grayFrom(resized)
	}

	return resized, float64(img.Width) / float64(resized.Width), float64(img.Height) / float64(resized.Height)
}

func (d *ModelDetector) pixels(img *decoder.Image) []byte {
	if d.cfg.ChannelOrder == ChannelOrderBGR {
		return img.BGR()
	}
	out := make([]byte, len(img.Pix))
	copy(out, img.Pix)
	return out
}

func (d *ModelDetector) normalize(raw []websocketPkg.RawDetection, width, height int, sx, sy float64) ([]entity.Detection, error) {
	detections := make([]entity.Detection, 0, len(raw))

	for _, r := range raw {
		if r.Confidence < d.cfg.ConfidenceThreshold {
			continue
		}

		obb, xyxy, err := parseGeometry(r.XYXY, r.XYWHR, r.Corners)
		if err != nil {
			return nil, err
		}

		det := entity.Detection{
			Label:      d.vocab.Label(r.ClassID),
			Confidence: roundConfidence(r.Confidence),
		}

		if obb != nil {
			scaled := Scale(*obb, sx, sy)
			det.Box = EnclosingBox(scaled, width, height)
			det.OBB = &scaled
		} else {
			det.Box = ClampBox(xyxy[0]*sx, xyxy[1]*sy, xyxy[2]*sx, xyxy[3]*sy, width, height)
		}

		detections = append(detections, det)
	}

	return detections, nil
}

func roundConfidence(v float64) float64 {
	return math.Round(math.Min(math.Max(v, 0), 1)*100) / 100
}

func grayFrom(img *decoder.Image) *decoder.Image {
	pix := make([]uint8, img.Width*img.Height)
	for i := range pix {
		pix[i] = img.Pix[i*3]
	}
	return &decoder.Image{Width: img.Width, Height: img.Height, Channels: 1, Pix: pix}
}

func sameLabels(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func newRequestID() string {
	return ulid.Make().String()
}
