package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"prediction-settlement/internal/notify"
	"prediction-settlement/internal/services"
)

// StreamHandler pushes BetPlaced notifications to browsers as server-sent
// events. Without a subscriber (Redis disabled) the stream is unavailable.
type StreamHandler struct {
	subscriber notify.Subscriber
	settlement *services.SettlementService
	logger     *zap.Logger
}

func NewStreamHandler(subscriber notify.Subscriber, settlement *services.SettlementService, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{subscriber: subscriber, settlement: settlement, logger: logger}
}

// StreamBets streams the bets placed on one market
// GET /api/markets/:id/stream
func (h *StreamHandler) StreamBets(c *gin.Context) {
	if h.subscriber == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "live updates are disabled",
			"code":  "STREAM_UNAVAILABLE",
		})
		return
	}

	marketID := c.Param("id")
	if _, err := h.settlement.GetMarket(c.Request.Context(), marketID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	ctx := c.Request.Context()
	events, err := h.subscriber.Subscribe(ctx)
	if err != nil {
		h.logger.Warn("failed to subscribe to bet feed", zap.String("market_id", marketID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "live updates are unavailable",
			"code":  "STREAM_UNAVAILABLE",
		})
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	// The ready event tells clients the subscription is live.
	c.SSEvent("ready", gin.H{"market_id": marketID})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-events:
			if !ok {
				return false
			}
			if event.MarketID == marketID {
				c.SSEvent("bet_placed", event)
			}
			return true
		}
	})
}
