package websocketPkg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	MessageLoad     = "load"
	MessageLoaded   = "loaded"
	MessageInfer    = "infer"
	MessageInferred = "result"
)

var ErrNotConnected = errors.New("not connected to inference worker")

type LoadRequest struct {
	Type      string   `json:"type"`
	ID        string   `json:"id"`
	ModelPath string   `json:"model_path"`
	Classes   []string `json:"classes,omitempty"`
	InputSize int      `json:"imgsz"`
}

type LoadResponse struct {
	Type    string   `json:"type"`
	ID      string   `json:"id"`
	OK      bool     `json:"ok"`
	Error   string   `json:"error,omitempty"`
	Task    string   `json:"task,omitempty"`
	Classes []string `json:"classes,omitempty"`
}

// InferRequest carries raw pixels; Data is base64 encoded by encoding/json.
type InferRequest struct {
	Type       string  `json:"type"`
	ID         string  `json:"id"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Channels   int     `json:"channels"`
	Order      string  `json:"order"`
	Confidence float64 `json:"conf"`
	Data       []byte  `json:"data"`
}

type RawDetection struct {
	ClassID    int       `json:"class_id"`
	Confidence float64   `json:"confidence"`
	XYXY       []float64 `json:"xyxy,omitempty"`
	XYWHR      []float64 `json:"xywhr,omitempty"`
	Corners    []float64 `json:"xyxyxyxy,omitempty"`
}

type InferResponse struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Detections []RawDetection `json:"detections"`
	Error      string         `json:"error,omitempty"`
}

type IWebsocket interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	ModelLoaded() bool
	Load(ctx context.Context, req LoadRequest) (*LoadResponse, error)
	Infer(ctx context.Context, req InferRequest) (*InferResponse, error)
	CloseConnections()
}

type webSocketClient struct {
	url          string
	log          *logrus.Logger
	conn         *websocket.Conn
	done         chan struct{}
	mu           sync.Mutex
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	// The worker keeps the model per connection, so the last acknowledged
	// load is replayed whenever a new connection is dialed.
	loadReq *LoadRequest
	loaded  atomic.Bool
	reloads int
}

func NewInferenceClient(url string, logger *logrus.Logger) IWebsocket {
	if url == "" {
		url = getWebSocketURL()
	}

	return &webSocketClient{
		url:          url,
		log:          logger,
		pingInterval: 30 * time.Second,
		readTimeout:  30 * time.Second,
		writeTimeout: 5 * time.Second,
	}
}

func (c *webSocketClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn != nil
}

// ModelLoaded reports whether the worker acknowledged the model on the most
// recent load or reload. A dropped connection alone does not clear it; the
// next call reconnects and reloads.
func (c *webSocketClient) ModelLoaded() bool {
	return c.loaded.Load()
}

func (c *webSocketClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connectLocked(ctx)
}

func (c *webSocketClient) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		c.dropLocked(c.conn)
	}

	c.log.Infof("Connecting to inference worker at %s", c.url)

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout))
		if err != nil {
			c.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	c.conn = conn
	c.done = make(chan struct{})
	go c.keepAlive(conn, c.done)

	if c.loadReq != nil {
		if err := c.reloadLocked(ctx, conn); err != nil {
			return err
		}
	}

	return nil
}

func (c *webSocketClient) reloadLocked(ctx context.Context, conn *websocket.Conn) error {
	c.reloads++
	req := *c.loadReq
	req.ID = fmt.Sprintf("%s-reload-%d", c.loadReq.ID, c.reloads)

	var resp LoadResponse
	if err := c.exchangeLocked(ctx, conn, req.ID, req, &resp, func() string { return resp.ID }); err != nil {
		c.loaded.Store(false)
		return fmt.Errorf("model reload failed: %w", err)
	}
	if !resp.OK {
		c.loaded.Store(false)
		c.dropLocked(conn)
		return fmt.Errorf("model reload failed: %s", resp.Error)
	}

	c.loaded.Store(true)
	c.log.WithField("model_path", req.ModelPath).Info("Model reloaded on new inference worker connection")

	return nil
}

func (c *webSocketClient) CloseConnections() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.dropLocked(c.conn)
	}
}

func (c *webSocketClient) keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if c.conn != conn {
			c.mu.Unlock()
			return
		}

		err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.writeTimeout))
		if err != nil {
			c.log.Warnf("Ping to inference worker failed, marking connection as dead: %v", err)
			c.dropLocked(conn)
			c.mu.Unlock()
			return
		}

		c.mu.Unlock()
	}
}

func (c *webSocketClient) Load(ctx context.Context, req LoadRequest) (*LoadResponse, error) {
	req.Type = MessageLoad

	var resp LoadResponse
	if err := c.roundTrip(ctx, req.ID, req, &resp, func() string { return resp.ID }); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if resp.OK {
		c.loadReq = &req
	}
	c.mu.Unlock()
	c.loaded.Store(resp.OK)

	return &resp, nil
}

func (c *webSocketClient) Infer(ctx context.Context, req InferRequest) (*InferResponse, error) {
	req.Type = MessageInfer

	var resp InferResponse
	if err := c.roundTrip(ctx, req.ID, req, &resp, func() string { return resp.ID }); err != nil {
		return nil, err
	}

	return &resp, nil
}

// roundTrip writes one request and reads until the response carrying the same
// id arrives. The connection is held for the whole exchange, so concurrent
// callers are serialised. A broken connection is dropped and redialed, with
// the model reloaded, on the next call.
func (c *webSocketClient) roundTrip(ctx context.Context, id string, req interface{}, resp interface{}, respID func() string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.connectLocked(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrNotConnected, err)
		}
	}

	return c.exchangeLocked(ctx, c.conn, id, req, resp, respID)
}

func (c *webSocketClient) exchangeLocked(ctx context.Context, conn *websocket.Conn, id string, req interface{}, resp interface{}, respID func() string) error {
	writeDeadline := time.Now().Add(c.writeTimeout)
	readDeadline := time.Now().Add(c.readTimeout)
	if dl, ok := ctx.Deadline(); ok {
		if dl.Before(writeDeadline) {
			writeDeadline = dl
		}
		if dl.Before(readDeadline) {
			readDeadline = dl
		}
	}

	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	conn.SetWriteDeadline(writeDeadline)
	if err := conn.WriteJSON(req); err != nil {
		c.dropLocked(conn)
		return fmt.Errorf("error sending request to inference worker: %w", err)
	}

	conn.SetReadDeadline(readDeadline)
	for {
		if err := conn.ReadJSON(resp); err != nil {
			c.dropLocked(conn)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("error reading inference worker response: %w", err)
		}
		if respID() == id {
			break
		}
		c.log.Warnf("Discarding stale inference worker message %q, waiting for %q", respID(), id)
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	return nil
}

// dropLocked closes conn and stops its keep-alive loop.
func (c *webSocketClient) dropLocked(conn *websocket.Conn) {
	if c.conn == conn {
		c.conn = nil
		if c.done != nil {
			close(c.done)
			c.done = nil
		}
	}
	conn.Close()
}

func getWebSocketURL() string {
	url := os.Getenv("AI_INFERENCE_WORKER_URL")
	if url == "" {
		url = "ws://localhost:8001/ws/obb"
	}
	return url
}
