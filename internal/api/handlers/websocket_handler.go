package handlers

import (
	"context"
	"sync"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/trustbites/backend/internal/reviews"
	"github.com/trustbites/backend/pkg/logger"
)

type WebSocketHandler struct {
	reviews *reviews.Service
}

func NewWebSocketHandler(svc *reviews.Service) *WebSocketHandler {
	return &WebSocketHandler{reviews: svc}
}

type wsRequest struct {
	Type    string `json:"type"`
	PlaceID string `json:"placeId"`
	ModelID string `json:"modelId"`
}

// HandleConnection streams restaurant analyses. Each {"type":"analyze"}
// message yields a status message, one review message per analyzed review
// and a final complete message.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	var writeMu sync.Mutex
	send := func(msg map[string]any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return c.WriteJSON(msg)
	}

	for {
		var msg wsRequest
		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			return
		}

		if msg.Type != "analyze" {
			continue
		}
		if msg.PlaceID == "" {
			h.sendError(send, "placeId is required")
			continue
		}

		logger.Info("Streaming restaurant analysis", zap.String("place_id", msg.PlaceID))
		if err := h.streamAnalysis(ctx, send, msg); err != nil {
			logger.Error("Failed to stream analysis", zap.String("place_id", msg.PlaceID), zap.Error(err))
			h.sendError(send, "Failed to analyze restaurant reviews")
		}
	}
}

func (h *WebSocketHandler) streamAnalysis(ctx context.Context, send func(map[string]any) error, msg wsRequest) error {
	if err := send(map[string]any{"type": "status", "content": "Fetching restaurant reviews..."}); err != nil {
		return err
	}

	// A failed write means the client is gone; stop issuing model calls.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sendErr error
	result, err := h.reviews.AnalyzeRestaurant(ctx, msg.PlaceID, msg.ModelID, func(ar reviews.AnalyzedReview) {
		if sendErr != nil {
			return
		}
		if sendErr = send(map[string]any{"type": "review", "review": ar}); sendErr != nil {
			cancel()
		}
	})
	if err != nil {
		return err
	}
	if sendErr != nil {
		return sendErr
	}

	return send(map[string]any{
		"type":               "complete",
		"restaurant":         result.Restaurant,
		"trustScore":         result.TrustScore,
		"reviewDistribution": result.ReviewDistribution,
		"totalReviews":       result.TotalReviews,
		"processed":          result.Batch.Processed,
		"errors":             result.Batch.Errors,
	})
}

func (h *WebSocketHandler) sendError(send func(map[string]any) error, errorMsg string) {
	if err := send(map[string]any{"type": "error", "error": errorMsg}); err != nil {
		logger.Debug("Failed to send WebSocket error", zap.Error(err))
	}
}
