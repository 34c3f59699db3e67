package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"prediction-settlement/internal/auth"
)

// Handlers bundles every HTTP handler of the service
type Handlers struct {
	Auth   *AuthHandler
	User   *UserHandler
	Market *MarketHandler
	Wallet *WalletHandler
	Stream *StreamHandler
}

// RegisterRoutes mounts all routes on router
func RegisterRoutes(router *gin.Engine, h Handlers) {
	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Authentication routes (public)
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/wallet", h.Auth.WalletLogin)
		authRoutes.POST("/logout", h.Auth.Logout)
	}

	// Authenticated /auth/me route
	authProtected := router.Group("/auth")
	authProtected.Use(auth.AuthMiddleware())
	{
		authProtected.GET("/me", h.Auth.GetMe)
	}

	// Public market routes
	router.GET("/api/markets", h.Market.GetMarkets)
	router.GET("/api/markets/:id", h.Market.GetMarketByID)
	router.GET("/api/markets/:id/quote", h.Market.GetQuote)
	router.GET("/api/markets/:id/events", h.Market.GetBetEvents)
	router.GET("/api/markets/:id/escrow", h.Market.GetEscrow)
	router.GET("/api/markets/:id/stream", h.Stream.StreamBets)

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		// Market endpoints
		api.POST("/markets", h.Market.CreateMarket)
		api.POST("/markets/:id/bets", h.Market.PlaceBet)
		api.GET("/markets/:id/bets/me", h.Market.GetMyBet)
		api.POST("/markets/:id/resolve", h.Market.ResolveMarket)
		api.POST("/markets/:id/claim", h.Market.Claim)

		// User endpoints
		api.PUT("/users/me/nickname", h.User.UpdateNickname)
		api.GET("/users/me/bets", h.User.GetMyBets)

		// Ledger endpoints
		api.GET("/wallet/balance", h.Wallet.GetBalance)
		api.GET("/wallet/entries", h.Wallet.GetEntries)
		api.POST("/ledger/deposits", h.Wallet.Deposit)
	}
}
