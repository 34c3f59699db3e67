package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"prediction-settlement/internal/apperr"
	"prediction-settlement/internal/auth"
)

// respondError writes a coded error. Uncoded errors are logged and reported
// as internal errors without leaking their text.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	if e, ok := apperr.As(err); ok {
		c.JSON(apperr.HTTPStatus(err), gin.H{
			"error": e.Error(),
			"code":  e.Code,
			"kind":  e.Kind,
		})
		return
	}

	logger.Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "internal error",
		"code":  "INTERNAL",
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": msg,
		"code":  "BAD_REQUEST",
		"kind":  apperr.KindValidation,
	})
}

// callerWallet returns the verified wallet of the request and writes a 401
// when the auth middleware did not set one.
func callerWallet(c *gin.Context) (string, bool) {
	wallet, ok := auth.GetWalletAddress(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
			"code":  "UNAUTHENTICATED",
		})
	}
	return wallet, ok
}
