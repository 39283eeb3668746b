package detectionHandler

import (
	detectionService "HelmetVision/internal/api/detection/service"
	"HelmetVision/internal/entity"
	"HelmetVision/internal/middleware"
	"HelmetVision/pkg/decoder"
	"HelmetVision/pkg/detector"
	"HelmetVision/pkg/utils"
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	gorillaws "github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

type failingBackend struct{}

func (failingBackend) Name() string                    { return "helmet_obb" }
func (failingBackend) Vocabulary() detector.Vocabulary { return detector.NewVocabulary("With Helmet") }
func (failingBackend) Available() bool                 { return true }
func (failingBackend) Detect(context.Context, *decoder.Image) ([]entity.Detection, error) {
	return nil, fmt.Errorf("%w: worker closed the connection", detector.ErrInference)
}

func newTestApp(t *testing.T, backend detector.Backend, modelLoaded bool) *fiber.App {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	if backend == nil {
		cfg, ok := detector.MockProfile("demo")
		require.True(t, ok)
		cfg.MinCount, cfg.MaxCount = 1, 1

		mock, err := detector.NewMockDetector(cfg, detector.WithSeed(42))
		require.NoError(t, err)
		backend = mock
	}

	mw := middleware.New(logger)
	svc := detectionService.NewDetectionService(logger, backend, modelLoaded)
	h := New(logger, validator.New(), mw, svc, utils.NewWithLimit(1024*1024), time.Second)

	app := fiber.New(fiber.Config{
		JSONEncoder: jsoniter.Marshal,
		JSONDecoder: jsoniter.Unmarshal,
	})
	app.Use(mw.NewRequestIDMiddleware())
	h.Start(app.Group("/api"))

	return app
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal(raw, &out), string(raw))
	return out
}

func uploadRequest(t *testing.T, field, fileName, contentType string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, fileName))
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/detect-upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestDetectBase64Handler(t *testing.T) {
	app := newTestApp(t, nil, false)

	t.Run("success", func(t *testing.T) {
		payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t))
		status, body := doJSON(t, app, http.MethodPost, "/api/detect-base64", `{"image":"`+payload+`"}`)

		assert.Equal(t, http.StatusOK, status)
		detections, ok := body["detections"].([]interface{})
		require.True(t, ok)
		assert.Len(t, detections, 1)
		assert.NotContains(t, body, "error")
	})

	t.Run("malformed base64", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodPost, "/api/detect-base64", `{"image":"data:image/png;base64,@@@@"}`)

		assert.Equal(t, http.StatusOK, status)
		assert.NotEmpty(t, body["error"])
		assert.Equal(t, []interface{}{}, body["detections"])
	})

	t.Run("missing image field", func(t *testing.T) {
		status, body := doJSON(t, app, http.MethodPost, "/api/detect-base64", `{}`)

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "VALIDATION_ERROR", body["code"])
	})
}

func TestDetectUploadHandler(t *testing.T) {
	app := newTestApp(t, nil, false)

	t.Run("image", func(t *testing.T) {
		resp, err := app.Test(uploadRequest(t, "file", "rider.png", "image/png", pngBytes(t)), -1)
		require.NoError(t, err)
		body := decodeBody(t, resp)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, map[string]interface{}{
			"width":    float64(1),
			"height":   float64(1),
			"filename": "rider.png",
		}, body["image_info"])
		assert.Len(t, body["detections"], 1)
	})

	t.Run("image field alias", func(t *testing.T) {
		resp, err := app.Test(uploadRequest(t, "image", "rider.png", "image/png", pngBytes(t)), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("non image", func(t *testing.T) {
		resp, err := app.Test(uploadRequest(t, "file", "notes.txt", "text/plain", []byte("hello")), -1)
		require.NoError(t, err)
		body := decodeBody(t, resp)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "File must be an image", body["error"])
	})

	t.Run("declared image but corrupt", func(t *testing.T) {
		resp, err := app.Test(uploadRequest(t, "file", "broken.png", "image/png", []byte("nope")), -1)
		require.NoError(t, err)
		body := decodeBody(t, resp)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, body["error"])
		assert.Equal(t, []interface{}{}, body["detections"])
	})

	t.Run("no file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/detect-upload", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestDetectUploadInferenceError(t *testing.T) {
	app := newTestApp(t, failingBackend{}, true)

	resp, err := app.Test(uploadRequest(t, "file", "rider.png", "image/png", pngBytes(t)), -1)
	require.NoError(t, err)
	body := decodeBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["error"], "worker closed the connection")
	assert.NotNil(t, body["image_info"])
	assert.NotContains(t, body, "detections")
}

func TestStatusRoutes(t *testing.T) {
	app := newTestApp(t, nil, false)

	status, body := doJSON(t, app, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, detector.MockDetectorName, body["model"])
	assert.Equal(t, false, body["model_loaded"])
	assert.NotEmpty(t, body["classes"])

	status, body = doJSON(t, app, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]interface{}{"status": "healthy", "model_status": "not_loaded"}, body)

	status, body = doJSON(t, app, http.MethodGet, "/api", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Object Detection API is running!", body["message"])

	status, body = doJSON(t, app, http.MethodGet, "/api/stats", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["enabled"])
}

func TestDetectionStream(t *testing.T) {
	app := newTestApp(t, nil, false)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	conn, _, err := gorillaws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/detect/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(gorillaws.BinaryMessage, pngBytes(t)))
	var result entity.DetectionResult
	require.NoError(t, conn.ReadJSON(&result))
	assert.Len(t, result.Detections, 1)

	require.NoError(t, conn.WriteMessage(gorillaws.BinaryMessage, []byte("garbage")))
	var failure map[string]interface{}
	require.NoError(t, conn.ReadJSON(&failure))
	assert.NotEmpty(t, failure["error"])
}

func TestDetectionStreamRequiresUpgrade(t *testing.T) {
	app := newTestApp(t, nil, false)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/detect/ws", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
