package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	IdempotencyHeader    = "Idempotency-Key"
	maxIdempotencyKeyLen = 255
	maxIdempotentBody    = 1 << 20

	idempotencyKeyKey  = "idempotency_key"
	idempotencyHashKey = "idempotency_request_hash"
)

// IdempotencyMiddleware records the Idempotency-Key header and a hash of the
// request body so the handler can detect replays.
func IdempotencyMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "idempotency key too long"})
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxIdempotentBody))
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		if err != nil {
			logger.Error("Failed to read request body", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		sum := sha256.Sum256(body)
		c.Set(idempotencyKeyKey, key)
		c.Set(idempotencyHashKey, hex.EncodeToString(sum[:]))
		c.Next()
	}
}

// GetIdempotencyInfo returns the key and request hash, both empty when the
// client sent no key.
func GetIdempotencyInfo(c *gin.Context) (key, requestHash string) {
	return c.GetString(idempotencyKeyKey), c.GetString(idempotencyHashKey)
}
