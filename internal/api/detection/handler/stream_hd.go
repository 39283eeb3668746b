package detectionHandler

import (
	"HelmetVision/internal/api/detection"
	contextPkg "HelmetVision/pkg/context"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const (
	streamReadTimeout  = 60 * time.Second
	streamWriteTimeout = 10 * time.Second
)

// handleStream answers every binary frame (an encoded image) with exactly one
// JSON message: a detection result or {"error": ...}.
func (h *DetectionHandler) handleStream(c *websocket.Conn) {
	requestID, _ := c.Locals("X-Request-ID").(string)
	entry := h.log.WithField("request_id", requestID)

	entry.Info("Detection stream client connected")
	defer entry.Info("Detection stream client disconnected")

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			entry.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	base := contextPkg.WithRequestID(context.Background(), requestID)

	for {
		if err := c.SetReadDeadline(time.Now().Add(streamReadTimeout)); err != nil {
			entry.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				entry.Errorf("Detection stream error: %v", err)
			}
			break
		}

		if messageType != websocket.BinaryMessage {
			entry.Warnf("Received unexpected message type: %d", messageType)
			if err := h.writeStream(c, detection.StreamError{Error: "expected a binary image frame"}); err != nil {
				break
			}
			continue
		}

		ctx, cancel := context.WithTimeout(base, h.timeout)
		result, err := h.detectionService.DetectFrame(ctx, message)
		cancel()

		var reply interface{} = result
		if err != nil {
			entry.WithFields(logrus.Fields{
				"error":      err.Error(),
				"frame_size": len(message),
			}).Warn("Frame detection failed")
			reply = detection.StreamError{Error: err.Error()}
		}

		if err := h.writeStream(c, reply); err != nil {
			entry.Errorf("Error writing JSON response: %v", err)
			break
		}
	}
}

func (h *DetectionHandler) writeStream(c *websocket.Conn, v interface{}) error {
	if err := c.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	if err := c.WriteJSON(v); err != nil {
		return err
	}
	return c.SetWriteDeadline(time.Time{})
}
