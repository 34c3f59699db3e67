package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"prediction-settlement/internal/ledger"
	"prediction-settlement/internal/models"
	"prediction-settlement/internal/services"
)

// WalletHandler exposes ledger balances and operator deposits
type WalletHandler struct {
	ledger     *ledger.Ledger
	isOperator func(wallet string) bool
	logger     *zap.Logger
}

func NewWalletHandler(l *ledger.Ledger, isOperator func(wallet string) bool, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{ledger: l, isOperator: isOperator, logger: logger}
}

// GetBalance returns the caller's ledger balance
// GET /api/wallet/balance
func (h *WalletHandler) GetBalance(c *gin.Context) {
	wallet, ok := callerWallet(c)
	if !ok {
		return
	}

	balance, err := h.ledger.Balance(c.Request.Context(), wallet)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"wallet_address": wallet,
			"balance":        balance,
			"balance_sol":    services.LamportsToSOL(balance).String(),
		},
	})
}

// GetEntries returns the caller's most recent journal entries
// GET /api/wallet/entries
func (h *WalletHandler) GetEntries(c *gin.Context) {
	wallet, ok := callerWallet(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	entries, err := h.ledger.Entries(c.Request.Context(), wallet, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    entries,
		"count":   len(entries),
	})
}

// Deposit mints funds into a wallet account (ledger operators only)
// POST /api/ledger/deposits
func (h *WalletHandler) Deposit(c *gin.Context) {
	wallet, ok := callerWallet(c)
	if !ok {
		return
	}
	if h.isOperator == nil || !h.isOperator(wallet) {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "ledger operator access required",
			"code":  "UNAUTHORIZED",
			"kind":  "AUTHORIZATION",
		})
		return
	}

	var req models.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	account, err := h.ledger.Deposit(c.Request.Context(), req.Account, req.Amount, req.Reference)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("operator deposit",
		zap.String("operator", wallet),
		zap.String("account", req.Account),
		zap.Uint64("amount", req.Amount),
	)

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    account,
	})
}
