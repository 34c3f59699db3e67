package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"prediction-settlement/internal/apperr"
	"prediction-settlement/internal/models"
	"prediction-settlement/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MarketHandler struct {
	settlement *services.SettlementService
	logger     *zap.Logger
}

func NewMarketHandler(settlement *services.SettlementService, logger *zap.Logger) *MarketHandler {
	return &MarketHandler{settlement: settlement, logger: logger}
}

// pagination reads limit/offset query parameters
func pagination(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

// GetMarkets returns markets, optionally filtered by state
// GET /api/markets
func (h *MarketHandler) GetMarkets(c *gin.Context) {
	var state models.MarketState
	switch s := models.MarketState(c.Query("state")); s {
	case "", models.MarketStateOpen, models.MarketStateResolved:
		state = s
	default:
		badRequest(c, "state must be OPEN or RESOLVED")
		return
	}
	limit, offset := pagination(c)

	markets, total, err := h.settlement.ListMarkets(c.Request.Context(), state, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    markets,
		"count":   len(markets),
		"total":   total,
	})
}

// GetMarketByID returns a single market
// GET /api/markets/:id
func (h *MarketHandler) GetMarketByID(c *gin.Context) {
	market, err := h.settlement.GetMarket(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    market,
	})
}

// GetQuote returns implied probabilities and payout multipliers
// GET /api/markets/:id/quote
func (h *MarketHandler) GetQuote(c *gin.Context) {
	quote, err := h.settlement.Quote(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    quote,
	})
}

// GetBetEvents returns the BetPlaced history of a market
// GET /api/markets/:id/events
func (h *MarketHandler) GetBetEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	events, err := h.settlement.ListBetEvents(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    events,
		"count":   len(events),
	})
}

// GetEscrow returns the escrow summary of a market
// GET /api/markets/:id/escrow
func (h *MarketHandler) GetEscrow(c *gin.Context) {
	summary, err := h.settlement.EscrowSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    summary,
	})
}

// CreateMarket opens a market administered by the caller
// POST /api/markets
func (h *MarketHandler) CreateMarket(c *gin.Context) {
	wallet, ok := callerWallet(c)
	if !ok {
		return
	}

	var req models.CreateMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	market, err := h.settlement.CreateMarket(c.Request.Context(), wallet, req.MarketID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    market,
	})
}

// PlaceBet stakes the caller's funds on one outcome
// POST /api/markets/:id/bets
func (h *MarketHandler) PlaceBet(c *gin.Context) {
	wallet, ok := callerWallet(c)
	if !ok {
		return
	}

	var req models.PlaceBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if _, coded := apperr.As(err); coded {
			respondError(c, h.logger, err)
			return
		}
		badRequest(c, err.Error())
		return
	}

	bet, err := h.settlement.PlaceBet(c.Request.Context(), wallet, c.Param("id"), req.Vote, req.Amount)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    bet,
	})
}

// GetMyBet returns the caller's bet on a market
// GET /api/markets/:id/bets/me
func (h *MarketHandler) GetMyBet(c *gin.Context) {
	wallet, ok := callerWallet(c)
	if !ok {
		return
	}

	bet, err := h.settlement.GetBet(c.Request.Context(), c.Param("id"), wallet)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    bet,
	})
}

// ResolveMarket declares the winning outcome (market admin only)
// POST /api/markets/:id/resolve
func (h *MarketHandler) ResolveMarket(c *gin.Context) {
	wallet, ok := callerWallet(c)
	if !ok {
		return
	}

	var req models.ResolveMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if _, coded := apperr.As(err); coded {
			respondError(c, h.logger, err)
			return
		}
		badRequest(c, err.Error())
		return
	}

	market, err := h.settlement.ResolveMarket(c.Request.Context(), wallet, c.Param("id"), req.Winner)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Market resolved",
		"data":    market,
	})
}

// Claim pays out the caller's winning bet. An optional bet_address in the
// body claims that specific bet instead of the caller's own.
// POST /api/markets/:id/claim
func (h *MarketHandler) Claim(c *gin.Context) {
	wallet, ok := callerWallet(c)
	if !ok {
		return
	}

	var req struct {
		BetAddress string `json:"bet_address"`
	}
	// An empty body claims the caller's own bet.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return
	}

	var (
		result *models.ClaimResult
		err    error
	)
	if req.BetAddress != "" {
		result, err = h.settlement.ClaimBet(c.Request.Context(), wallet, c.Param("id"), req.BetAddress)
	} else {
		result, err = h.settlement.Claim(c.Request.Context(), wallet, c.Param("id"))
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}
