package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"prediction-settlement/internal/services"
)

// UserHandler handles user-related endpoints
type UserHandler struct {
	userService *services.UserService
	settlement  *services.SettlementService
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService *services.UserService, settlement *services.SettlementService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		settlement:  settlement,
		logger:      logger,
	}
}

// UpdateNickname changes the caller's display name
// PUT /api/users/me/nickname
func (h *UserHandler) UpdateNickname(c *gin.Context) {
	wallet, ok := callerWallet(c)
	if !ok {
		return
	}

	var req struct {
		Nickname string `json:"nickname" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.userService.UpdateNickname(c.Request.Context(), wallet, req.Nickname)
	if errors.Is(err, services.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found", "code": "USER_NOT_FOUND"})
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// GetMyBets lists the caller's bets across markets
// GET /api/users/me/bets
func (h *UserHandler) GetMyBets(c *gin.Context) {
	wallet, ok := callerWallet(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	bets, err := h.settlement.ListUserBets(c.Request.Context(), wallet, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    bets,
		"count":   len(bets),
	})
}
